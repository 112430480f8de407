package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Railway HRM API",
        "description": "Employee records, office hierarchy and profile change requests.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Auth", "description": "Login and current user"},
        {"name": "Offices", "description": "Office hierarchy and admin coverage"},
        {"name": "Employees", "description": "Employee profiles and direct admin edits"},
        {"name": "Documents", "description": "Employee document uploads"},
        {"name": "Profile Requests", "description": "Self-service change requests"},
        {"name": "Files", "description": "Signed document downloads"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate with email and password",
                "security": [],
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}],
                "responses": {
                    "200": {"description": "Access token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {"tags": ["Auth"], "summary": "Current user", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/offices": {
            "get": {"tags": ["Offices"], "summary": "List offices", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "post": {
                "tags": ["Offices"],
                "summary": "Create office",
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/OfficeRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate code", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/offices/tree": {
            "get": {"tags": ["Offices"], "summary": "Office forest with admin coverage", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/offices/managed": {
            "get": {"tags": ["Offices"], "summary": "Offices the caller may administer", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/offices/zones": {
            "get": {"tags": ["Offices"], "summary": "Accepted office zones", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/offices/{id}": {
            "parameters": [{"in": "path", "name": "id", "required": true, "type": "integer"}],
            "get": {"tags": ["Offices"], "summary": "Office detail", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "put": {
                "tags": ["Offices"],
                "summary": "Update office",
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/OfficeRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "422": {"description": "Cycle or invalid zone", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "delete": {"tags": ["Offices"], "summary": "Delete office", "responses": {"204": {"description": "Deleted"}, "409": {"description": "Office in use", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/employees": {
            "get": {
                "tags": ["Employees"],
                "summary": "List employees visible to the caller",
                "parameters": [
                    {"in": "query", "name": "office_id", "type": "integer"},
                    {"in": "query", "name": "status", "type": "string", "enum": ["active", "released", "retired"]},
                    {"in": "query", "name": "search", "type": "string"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "per_page", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/employees/{id}": {
            "parameters": [{"in": "path", "name": "id", "required": true, "type": "integer"}],
            "get": {"tags": ["Employees"], "summary": "Employee profile", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/employees/{id}/profile": {
            "parameters": [{"in": "path", "name": "id", "required": true, "type": "integer"}],
            "put": {
                "tags": ["Employees"],
                "summary": "Edit an employee profile directly",
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ProposedChanges"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "422": {"description": "Invalid changes", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/employees/{id}/documents/{kind}": {
            "parameters": [
                {"in": "path", "name": "id", "required": true, "type": "integer"},
                {"in": "path", "name": "kind", "required": true, "type": "string", "enum": ["photo", "nid", "birth", "certificate", "child"]}
            ],
            "post": {
                "tags": ["Documents"],
                "summary": "Upload an employee document",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"in": "formData", "name": "file", "required": true, "type": "file"},
                    {"in": "formData", "name": "academic_id", "type": "integer"},
                    {"in": "formData", "name": "academic_index", "type": "integer"},
                    {"in": "formData", "name": "family_member_id", "type": "integer"},
                    {"in": "formData", "name": "submit", "type": "boolean"}
                ],
                "responses": {"201": {"description": "Staged or stored", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "422": {"description": "Rejected file", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/employees/{id}/documents/pending": {
            "parameters": [
                {"in": "path", "name": "id", "required": true, "type": "integer"},
                {"in": "body", "name": "payload", "required": true, "schema": {"type": "object", "required": ["path"], "properties": {"path": {"type": "string"}}}}
            ],
            "delete": {"tags": ["Documents"], "summary": "Discard a staged upload", "responses": {"204": {"description": "Discarded"}, "409": {"description": "Referenced by a pending request", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/profile-requests": {
            "post": {
                "tags": ["Profile Requests"],
                "summary": "Submit a profile change request",
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/CreateProfileRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "409": {"description": "Pending request exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "get": {"tags": ["Profile Requests"], "summary": "List requests in scope", "parameters": [{"$ref": "#/parameters/status"}, {"$ref": "#/parameters/from"}, {"$ref": "#/parameters/to"}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/profile-requests/pending": {
            "get": {"tags": ["Profile Requests"], "summary": "Pending requests awaiting the caller", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/profile-requests/my": {
            "get": {"tags": ["Profile Requests"], "summary": "The caller's own requests", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/profile-requests/{id}": {
            "parameters": [{"in": "path", "name": "id", "required": true, "type": "integer"}],
            "get": {"tags": ["Profile Requests"], "summary": "Request detail with current values", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "delete": {"tags": ["Profile Requests"], "summary": "Cancel an own pending request", "responses": {"204": {"description": "Cancelled"}, "409": {"description": "Already processed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/profile-requests/{id}/process": {
            "parameters": [{"in": "path", "name": "id", "required": true, "type": "integer"}],
            "post": {
                "tags": ["Profile Requests"],
                "summary": "Approve or reject a pending request",
                "parameters": [{"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ProcessProfileRequest"}}],
                "responses": {"200": {"description": "Processed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}, "409": {"description": "Already processed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/files/{token}": {
            "get": {
                "tags": ["Files"],
                "summary": "Download a stored document",
                "security": [],
                "parameters": [{"in": "path", "name": "token", "required": true, "type": "string"}],
                "responses": {"200": {"description": "File content"}, "401": {"description": "Invalid or expired link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        }
    },
    "parameters": {
        "status": {"in": "query", "name": "status", "type": "string", "enum": ["pending", "processed"]},
        "from": {"in": "query", "name": "from", "type": "string", "format": "date"},
        "to": {"in": "query", "name": "to", "type": "string", "format": "date"}
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "OfficeRequest": {
            "type": "object",
            "required": ["name", "code", "location"],
            "properties": {
                "name": {"type": "string"},
                "code": {"type": "string"},
                "location": {"type": "string"},
                "zone": {"type": "string", "enum": ["center", "east", "west"]},
                "parent_id": {"type": "integer"}
            }
        },
        "ProposedChanges": {
            "type": "object",
            "properties": {
                "personal_info": {"type": "object"},
                "family": {"type": "object"},
                "addresses": {"type": "object"},
                "academics": {"type": "array", "items": {"type": "object"}},
                "pending_documents": {"type": "array", "items": {"type": "object"}}
            }
        },
        "CreateProfileRequest": {
            "type": "object",
            "required": ["request_type", "proposed_changes"],
            "properties": {
                "request_type": {"type": "string"},
                "details": {"type": "string"},
                "proposed_changes": {"$ref": "#/definitions/ProposedChanges"}
            }
        },
        "ProcessProfileRequest": {
            "type": "object",
            "required": ["is_approved"],
            "properties": {
                "is_approved": {"type": "boolean"},
                "admin_note": {"type": "string"},
                "approved_changes": {"$ref": "#/definitions/ProposedChanges"}
            }
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
                "details": {"type": "object"},
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
