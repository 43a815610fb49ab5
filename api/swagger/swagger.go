package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Recommendation Letter API",
        "description": "Recommendation request and letter fulfillment service",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Requests", "description": "Recommendation request lifecycle"},
        {"name": "Recipients", "description": "Letter writer directory"},
        {"name": "Portal", "description": "Token-keyed recipient portal"},
        {"name": "Letters", "description": "Letter verification"},
        {"name": "Reports", "description": "Operator reporting"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Backing store unavailable"}
                }
            }
        },
        "/api/v1/requests": {
            "get": {
                "tags": ["Requests"],
                "summary": "List recommendation requests",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Requests"],
                "summary": "Create a draft request",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateRequestPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/requests/summary": {
            "get": {
                "tags": ["Requests"],
                "summary": "Per-student dashboard summary",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/requests/{id}": {
            "get": {
                "tags": ["Requests"],
                "summary": "Get request detail",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Requests"],
                "summary": "Cancel a request",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Request already terminal"}
                }
            }
        },
        "/api/v1/requests/{id}/send": {
            "post": {
                "tags": ["Requests"],
                "summary": "Send the request to its recipient",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Invalid status transition"}
                }
            }
        },
        "/api/v1/requests/{id}/letters": {
            "get": {
                "tags": ["Requests"],
                "summary": "List all letter versions",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/requests/{id}/letters/download": {
            "get": {
                "tags": ["Requests"],
                "summary": "Download link for the latest letter file",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No uploaded file"}
                }
            }
        },
        "/api/v1/recipients": {
            "get": {
                "tags": ["Recipients"],
                "summary": "List recipients",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Recipients"],
                "summary": "Create recipient",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateRecipientPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/recipients/{id}": {
            "get": {
                "tags": ["Recipients"],
                "summary": "Get recipient",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Recipients"],
                "summary": "Update recipient",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateRecipientPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Recipients"],
                "summary": "Delete recipient",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Recipient has active requests"}
                }
            }
        },
        "/api/v1/letters/{id}/verify": {
            "post": {
                "tags": ["Letters"],
                "summary": "Verify a submitted letter version",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VerifyLetterPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/reports/overdue": {
            "get": {
                "tags": ["Reports"],
                "summary": "Overdue request report",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["json", "csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/portal/{token}": {
            "get": {
                "tags": ["Portal"],
                "summary": "Recipient portal view",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "Link no longer valid"}
                }
            }
        },
        "/portal/{token}/acknowledge": {
            "post": {
                "tags": ["Portal"],
                "summary": "Acknowledge the request",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "410": {"description": "Link no longer valid"}
                }
            }
        },
        "/portal/{token}/upload": {
            "post": {
                "tags": ["Portal"],
                "summary": "Request a presigned upload target",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UploadTargetPayload"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "File rejected"},
                    "410": {"description": "Link no longer valid"}
                }
            }
        },
        "/portal/{token}/upload-fallback": {
            "post": {
                "tags": ["Portal"],
                "summary": "Upload the file through the server",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "File rejected"},
                    "410": {"description": "Link no longer valid"}
                }
            }
        },
        "/portal/{token}/submit": {
            "post": {
                "tags": ["Portal"],
                "summary": "Submit a letter version",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitLetterPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "Link no longer valid"}
                }
            }
        },
        "/portal/{token}/view": {
            "get": {
                "tags": ["Portal"],
                "summary": "Preview the latest uploaded file",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "Link no longer valid"}
                }
            }
        }
    },
    "definitions": {
        "CreateRequestPayload": {
            "type": "object",
            "required": ["recipientId", "title", "deadline"],
            "properties": {
                "recipientId": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "deadline": {"type": "string", "format": "date-time"},
                "priority": {"type": "string", "enum": ["LOW", "MEDIUM", "HIGH"]},
                "applicationId": {"type": "string"},
                "scholarshipId": {"type": "string"},
                "reminderIntervals": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "CreateRecipientPayload": {
            "type": "object",
            "required": ["name", "institution", "emails", "primaryEmail"],
            "properties": {
                "name": {"type": "string"},
                "title": {"type": "string"},
                "institution": {"type": "string"},
                "department": {"type": "string"},
                "emails": {"type": "array", "items": {"type": "string"}},
                "primaryEmail": {"type": "string"},
                "phone": {"type": "string"},
                "preferredLanguage": {"type": "string"}
            }
        },
        "UpdateRecipientPayload": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "title": {"type": "string"},
                "institution": {"type": "string"},
                "department": {"type": "string"},
                "emails": {"type": "array", "items": {"type": "string"}},
                "primaryEmail": {"type": "string"},
                "phone": {"type": "string"},
                "preferredLanguage": {"type": "string"}
            }
        },
        "UploadTargetPayload": {
            "type": "object",
            "required": ["fileName", "contentType", "fileSize"],
            "properties": {
                "fileName": {"type": "string"},
                "contentType": {"type": "string"},
                "fileSize": {"type": "integer"}
            }
        },
        "SubmitLetterPayload": {
            "type": "object",
            "properties": {
                "content": {"type": "string"},
                "fileName": {"type": "string"},
                "fileKey": {"type": "string"},
                "fileType": {"type": "string"},
                "fileSize": {"type": "integer"}
            }
        },
        "VerifyLetterPayload": {
            "type": "object",
            "properties": {
                "notes": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "pageSize": {"type": "integer"},
                "totalCount": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
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
