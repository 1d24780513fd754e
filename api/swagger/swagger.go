package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "TidyShare API",
        "description": "SharePoint library crawler and cleanup suggestion engine",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and profile"},
        {"name": "Scans", "description": "Crawl lifecycle and analysis"},
        {"name": "Suggestions", "description": "Cleanup suggestion review"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user profile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized"}
                }
            }
        },
        "/scans": {
            "get": {
                "tags": ["Scans"],
                "summary": "List scans",
                "parameters": [
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Scans"],
                "summary": "Start a scan",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StartScanRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Bad Request"}
                }
            }
        },
        "/scans/{id}": {
            "get": {
                "tags": ["Scans"],
                "summary": "Poll scan status",
                "description": "Reports crawl state and advances a running crawl by one batch cycle",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found"}
                }
            }
        },
        "/scans/{id}/analyze": {
            "post": {
                "tags": ["Scans"],
                "summary": "Run analysis",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Scan not ready"}
                }
            }
        },
        "/scans/{id}/suggestions": {
            "get": {
                "tags": ["Suggestions"],
                "summary": "List suggestions",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "category", "in": "query", "type": "string"},
                    {"name": "severity", "in": "query", "type": "string"},
                    {"name": "decision", "in": "query", "type": "string"},
                    {"name": "source", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scans/{id}/suggestions/export": {
            "get": {
                "tags": ["Suggestions"],
                "summary": "Export suggestions",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File download"}
                }
            }
        },
        "/scans/{id}/actions": {
            "get": {
                "tags": ["Suggestions"],
                "summary": "Decision ledger",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/suggestions/{id}/decision": {
            "put": {
                "tags": ["Suggestions"],
                "summary": "Record a decision",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Decision already executed"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "StartScanRequest": {
            "type": "object",
            "properties": {
                "source_url": {"type": "string"}
            },
            "required": ["source_url"]
        },
        "ScanStatus": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "crawling", "crawled", "analyzing", "complete", "error"]},
                "progress": {"type": "integer"},
                "total_files": {"type": "integer"},
                "total_folders": {"type": "integer"},
                "total_size_bytes": {"type": "integer"},
                "error_message": {"type": "string"}
            }
        },
        "Suggestion": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "scan_id": {"type": "string"},
                "file_id": {"type": "string"},
                "category": {"type": "string", "enum": ["delete", "archive", "rename", "structure"]},
                "severity": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "current_value": {"type": "string"},
                "suggested_value": {"type": "string"},
                "confidence": {"type": "number"},
                "source": {"type": "string", "enum": ["rules", "ai"]},
                "user_decision": {"type": "string"},
                "decided_at": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "DecisionRequest": {
            "type": "object",
            "properties": {
                "decision": {"type": "string", "enum": ["approved", "rejected", "skipped", "executed"]},
                "detail": {"type": "string"}
            },
            "required": ["decision"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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
