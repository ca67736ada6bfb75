package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Temporav3 API",
        "description": "Calendar scheduling and weekly optimization service",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Events",
            "description": "Fixed, recurring and floating events"
        },
        {
            "name": "Preferences",
            "description": "Work, sleep and rounding settings"
        },
        {
            "name": "Optimizations",
            "description": "Weekly optimization policies"
        },
        {
            "name": "Scores",
            "description": "Health, productivity and statistics"
        },
        {
            "name": "Export",
            "description": "Agenda downloads"
        }
    ],
    "paths": {
        "/events": {
            "get": {
                "tags": [
                    "Events"
                ],
                "summary": "List events",
                "parameters": [
                    {
                        "name": "from",
                        "in": "query",
                        "type": "string",
                        "format": "date-time"
                    },
                    {
                        "name": "to",
                        "in": "query",
                        "type": "string",
                        "format": "date-time"
                    },
                    {
                        "name": "category",
                        "in": "query",
                        "type": "string",
                        "enum": [
                            "Work",
                            "Meeting",
                            "Personal",
                            "Recreational",
                            "Meal"
                        ]
                    },
                    {
                        "name": "type",
                        "in": "query",
                        "type": "string",
                        "enum": [
                            "fixed",
                            "recurring_parent",
                            "recurring_instance",
                            "floating"
                        ]
                    },
                    {
                        "name": "parent_id",
                        "in": "query",
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid filter",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "post": {
                "tags": [
                    "Events"
                ],
                "summary": "Create fixed event",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateEventRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid payload, duration or past span",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Overlaps another event",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/events/validate": {
            "post": {
                "tags": [
                    "Events"
                ],
                "summary": "Dry-run a fixed event",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateEventRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/events/recurring": {
            "post": {
                "tags": [
                    "Events"
                ],
                "summary": "Create recurring event",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateRecurringRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid duration or frequency",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "No occurrence could be placed",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/events/floating": {
            "post": {
                "tags": [
                    "Events"
                ],
                "summary": "Create floating task",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreateFloatingRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid window or deadline passed",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "422": {
                        "description": "No slot before the deadline",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/events/{id}": {
            "get": {
                "tags": [
                    "Events"
                ],
                "summary": "Get event",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Event ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "put": {
                "tags": [
                    "Events"
                ],
                "summary": "Update event",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Event ID"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdateEventRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Locked or overlapping",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "delete": {
                "tags": [
                    "Events"
                ],
                "summary": "Delete event",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Event ID"
                    },
                    {
                        "name": "mode",
                        "in": "query",
                        "type": "string",
                        "enum": [
                            "this_instance",
                            "all_future"
                        ]
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Not found",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/events/{id}/lock": {
            "patch": {
                "tags": [
                    "Events"
                ],
                "summary": "Toggle event lock",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Event ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/preferences": {
            "get": {
                "tags": [
                    "Preferences"
                ],
                "summary": "Get scheduling preferences",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            },
            "put": {
                "tags": [
                    "Preferences"
                ],
                "summary": "Replace scheduling preferences",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdatePreferencesRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Invalid preferences",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/optimizations": {
            "post": {
                "tags": [
                    "Optimizations"
                ],
                "summary": "Run an optimization policy",
                "description": "Previews by default. Set preview=false to commit at once.",
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/OptimizeRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Unknown action or past week",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Calendar changed since the proposal",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/optimizations/{id}/apply": {
            "post": {
                "tags": [
                    "Optimizations"
                ],
                "summary": "Apply a previewed proposal",
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string",
                        "description": "Proposal ID"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "404": {
                        "description": "Proposal not found or expired",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Calendar changed since the proposal",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/scores/health": {
            "get": {
                "tags": [
                    "Scores"
                ],
                "summary": "Week health score",
                "parameters": [
                    {
                        "name": "week_offset",
                        "in": "query",
                        "type": "integer",
                        "description": "Weeks from the current one"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/scores/productivity": {
            "get": {
                "tags": [
                    "Scores"
                ],
                "summary": "Week productivity score",
                "parameters": [
                    {
                        "name": "week_offset",
                        "in": "query",
                        "type": "integer",
                        "description": "Weeks from the current one"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/statistics": {
            "get": {
                "tags": [
                    "Scores"
                ],
                "summary": "Week statistics",
                "parameters": [
                    {
                        "name": "week_offset",
                        "in": "query",
                        "type": "integer",
                        "description": "Weeks from the current one"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        },
        "/export": {
            "get": {
                "tags": [
                    "Export"
                ],
                "summary": "Export week agenda",
                "produces": [
                    "text/csv",
                    "application/pdf",
                    "text/calendar"
                ],
                "parameters": [
                    {
                        "name": "format",
                        "in": "query",
                        "type": "string",
                        "enum": [
                            "csv",
                            "pdf",
                            "ics"
                        ],
                        "default": "csv"
                    },
                    {
                        "name": "week_offset",
                        "in": "query",
                        "type": "integer",
                        "description": "Weeks from the current one"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "Agenda file",
                        "schema": {
                            "type": "file"
                        }
                    },
                    "400": {
                        "description": "Unsupported format",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    }
                },
                "security": [
                    {
                        "BearerAuth": []
                    }
                ]
            }
        }
    },
    "definitions": {
        "PreferredTime": {
            "type": "object",
            "required": [
                "start",
                "end"
            ],
            "properties": {
                "start": {
                    "type": "string"
                },
                "end": {
                    "type": "string"
                },
                "enabled": {
                    "type": "boolean"
                }
            }
        },
        "DailyWindow": {
            "type": "object",
            "required": [
                "start",
                "end"
            ],
            "properties": {
                "start": {
                    "type": "string",
                    "example": "09:00"
                },
                "end": {
                    "type": "string",
                    "example": "17:00"
                }
            }
        },
        "CreateEventRequest": {
            "type": "object",
            "required": [
                "title",
                "category",
                "start",
                "end"
            ],
            "properties": {
                "title": {
                    "type": "string",
                    "maxLength": 200
                },
                "category": {
                    "type": "string",
                    "enum": [
                        "Work",
                        "Meeting",
                        "Personal",
                        "Recreational",
                        "Meal"
                    ]
                },
                "priority": {
                    "type": "string",
                    "enum": [
                        "high",
                        "medium",
                        "low"
                    ]
                },
                "notes": {
                    "type": "string",
                    "maxLength": 200
                },
                "preferred_time": {
                    "$ref": "#/definitions/PreferredTime"
                },
                "start": {
                    "type": "string",
                    "format": "date-time"
                },
                "end": {
                    "type": "string",
                    "format": "date-time"
                },
                "locked": {
                    "type": "boolean"
                }
            }
        },
        "CreateRecurringRequest": {
            "type": "object",
            "required": [
                "title",
                "category",
                "duration",
                "frequency"
            ],
            "properties": {
                "title": {
                    "type": "string",
                    "maxLength": 200
                },
                "category": {
                    "type": "string",
                    "enum": [
                        "Work",
                        "Meeting",
                        "Personal",
                        "Recreational",
                        "Meal"
                    ]
                },
                "priority": {
                    "type": "string",
                    "enum": [
                        "high",
                        "medium",
                        "low"
                    ]
                },
                "notes": {
                    "type": "string",
                    "maxLength": 200
                },
                "preferred_time": {
                    "$ref": "#/definitions/PreferredTime"
                },
                "duration": {
                    "type": "integer",
                    "description": "Minutes"
                },
                "frequency": {
                    "type": "integer",
                    "description": "Days between occurrences"
                },
                "start_date": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "CreateFloatingRequest": {
            "type": "object",
            "required": [
                "title",
                "category",
                "duration",
                "deadline"
            ],
            "properties": {
                "title": {
                    "type": "string",
                    "maxLength": 200
                },
                "category": {
                    "type": "string",
                    "enum": [
                        "Work",
                        "Meeting",
                        "Personal",
                        "Recreational",
                        "Meal"
                    ]
                },
                "priority": {
                    "type": "string",
                    "enum": [
                        "high",
                        "medium",
                        "low"
                    ]
                },
                "notes": {
                    "type": "string",
                    "maxLength": 200
                },
                "preferred_time": {
                    "$ref": "#/definitions/PreferredTime"
                },
                "duration": {
                    "type": "integer",
                    "description": "Minutes"
                },
                "earliest_start": {
                    "type": "string",
                    "format": "date-time"
                },
                "deadline": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "UpdateEventRequest": {
            "type": "object",
            "properties": {
                "title": {
                    "type": "string",
                    "maxLength": 200
                },
                "category": {
                    "type": "string",
                    "enum": [
                        "Work",
                        "Meeting",
                        "Personal",
                        "Recreational",
                        "Meal"
                    ]
                },
                "priority": {
                    "type": "string",
                    "enum": [
                        "high",
                        "medium",
                        "low"
                    ]
                },
                "notes": {
                    "type": "string",
                    "maxLength": 200
                },
                "preferred_time": {
                    "$ref": "#/definitions/PreferredTime"
                },
                "start": {
                    "type": "string",
                    "format": "date-time"
                },
                "end": {
                    "type": "string",
                    "format": "date-time"
                }
            }
        },
        "UpdatePreferencesRequest": {
            "type": "object",
            "required": [
                "work",
                "sleep",
                "round_to_minutes"
            ],
            "properties": {
                "work": {
                    "$ref": "#/definitions/DailyWindow"
                },
                "sleep": {
                    "$ref": "#/definitions/DailyWindow"
                },
                "round_to_minutes": {
                    "type": "integer",
                    "enum": [
                        5,
                        10,
                        15,
                        30
                    ]
                }
            }
        },
        "OptimizeRequest": {
            "type": "object",
            "required": [
                "action"
            ],
            "properties": {
                "action": {
                    "type": "string",
                    "enum": [
                        "smart_optimize_week",
                        "consolidate",
                        "group_deep_work",
                        "add_planning_buffer",
                        "reduce_meeting_load",
                        "add_recovery_time",
                        "fix_sleep_schedule",
                        "distribute_week"
                    ]
                },
                "week_offset": {
                    "type": "integer",
                    "minimum": -52,
                    "maximum": 52
                },
                "preview": {
                    "type": "boolean",
                    "default": true
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                },
                "retryable": {
                    "type": "boolean"
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "meta": {
                    "type": "object"
                }
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
