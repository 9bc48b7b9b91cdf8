package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Policy Docs API",
        "description": "Multi-tenant policy document registry with a reviewed change workflow",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Credential store"},
        {"name": "Documents", "description": "Tenant document registry"},
        {"name": "Changes", "description": "Clause change review workflow"},
        {"name": "Gateway", "description": "Frontend aggregation"}
    ],
    "paths": {
        "/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and issue an access token",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/LoginResponse"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Too many attempts"}
                }
            }
        },
        "/register": {
            "post": {
                "tags": ["Auth"],
                "summary": "Self-register a STAFF or STUDENT account",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/UserInfo"}},
                    "409": {"description": "Username or email taken"}
                }
            }
        },
        "/verify-email": {
            "get": {
                "tags": ["Auth"],
                "summary": "Confirm an email verification token",
                "parameters": [
                    {"in": "query", "name": "token", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Verified"},
                    "400": {"description": "Unknown or expired token"}
                }
            }
        },
        "/password-reset-request": {
            "post": {
                "tags": ["Auth"],
                "summary": "Mail a password reset link",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/PasswordResetRequest"}}
                ],
                "responses": {
                    "200": {"description": "Accepted whether or not the email is known"}
                }
            }
        },
        "/reset-password": {
            "post": {
                "tags": ["Auth"],
                "summary": "Set a new password using a reset token",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ResetPasswordRequest"}}
                ],
                "responses": {
                    "200": {"description": "Password updated"},
                    "400": {"description": "Unknown or expired token"}
                }
            }
        },
        "/validate": {
            "post": {
                "tags": ["Auth"],
                "summary": "Validate an access token",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ValidateTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ValidateTokenResponse"}},
                    "401": {"description": "Invalid token"}
                }
            }
        },
        "/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/UserInfo"}}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["Auth", "Gateway"],
                "summary": "Users of the caller's institution",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/UserInfo"}}}
                }
            }
        },
        "/institutions": {
            "get": {
                "tags": ["Auth"],
                "summary": "Institutions open for registration",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/documents": {
            "get": {
                "tags": ["Documents", "Gateway"],
                "summary": "List tenant documents",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "status", "type": "string"},
                    {"in": "query", "name": "category", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/Document"}}}
                }
            },
            "post": {
                "tags": ["Documents"],
                "summary": "Create an inline document",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/CreateDocumentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Document"}},
                    "403": {"description": "Implementors only"}
                }
            }
        },
        "/documents/published": {
            "get": {
                "tags": ["Documents"],
                "summary": "Published documents of the caller's institution",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/Document"}}}
                }
            }
        },
        "/documents/upload": {
            "post": {
                "tags": ["Documents"],
                "summary": "Upload a document file",
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"in": "formData", "name": "file", "type": "file", "required": true},
                    {"in": "formData", "name": "title", "type": "string"},
                    {"in": "formData", "name": "version", "type": "string"},
                    {"in": "formData", "name": "revision", "type": "string"},
                    {"in": "formData", "name": "category", "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Document"}},
                    "413": {"description": "File too large"},
                    "415": {"description": "Unsupported file type"}
                }
            }
        },
        "/documents/{id}": {
            "get": {
                "tags": ["Documents"],
                "summary": "Get a document",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Document"}},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Documents"],
                "summary": "Update document metadata or content",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/UpdateDocumentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Document"}}
                }
            }
        },
        "/documents/{id}/content": {
            "get": {
                "tags": ["Documents"],
                "summary": "Fetch document content",
                "description": "Accepts a bearer token or a signed token query parameter. format=html or format=pdf renders inline content.",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "query", "name": "token", "type": "string"},
                    {"in": "query", "name": "format", "type": "string", "enum": ["html", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File stream or inline content"},
                    "401": {"description": "Missing credentials"},
                    "403": {"description": "Invalid or expired link"}
                }
            }
        },
        "/documents/{id}/content-link": {
            "get": {
                "tags": ["Documents"],
                "summary": "Issue a short-lived signed content URL",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ContentLinkResponse"}}
                }
            }
        },
        "/documents/{id}/clauses": {
            "get": {
                "tags": ["Documents"],
                "summary": "Numbered clauses of inline content",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/documents/{id}/propose-change": {
            "post": {
                "tags": ["Changes"],
                "summary": "Propose a clause change",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ProposeChangeRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Change"}},
                    "403": {"description": "Staff only"}
                }
            }
        },
        "/documents/{id}/changes": {
            "get": {
                "tags": ["Changes"],
                "summary": "Changes proposed against a document",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/Change"}}}
                }
            }
        },
        "/documents/{id}/changes/export": {
            "get": {
                "tags": ["Changes"],
                "summary": "Download the change register as CSV or PDF",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "query", "name": "format", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "CSV attachment"}
                }
            }
        },
        "/changes": {
            "get": {
                "tags": ["Changes"],
                "summary": "List changes visible to the caller",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "query", "name": "documentId", "type": "string"},
                    {"in": "query", "name": "status", "type": "array", "items": {"type": "string"}, "collectionFormat": "multi"},
                    {"in": "query", "name": "mine", "type": "boolean"},
                    {"in": "query", "name": "limit", "type": "integer"},
                    {"in": "query", "name": "offset", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/Change"}}}
                }
            }
        },
        "/changes/{id}": {
            "get": {
                "tags": ["Changes"],
                "summary": "Get a change",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Change"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/changes/{id}/review": {
            "put": {
                "tags": ["Changes"],
                "summary": "Approve or reject a pending change",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/ReviewChangeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Change"}},
                    "400": {"description": "Change is not pending"}
                }
            }
        },
        "/changes/{id}/verify": {
            "put": {
                "tags": ["Changes"],
                "summary": "Mark an approved change implemented",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Change"}},
                    "400": {"description": "Change is not approved"}
                }
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Gateway"],
                "summary": "User, published documents and actionable changes",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DashboardResponse"}},
                    "500": {"description": "An upstream failed"}
                }
            }
        },
        "/revision-requests": {
            "post": {
                "tags": ["Gateway"],
                "summary": "File a change using the revision request shape",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/RevisionRequestPayload"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Change"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["username", "password", "institutionId"],
            "properties": {
                "username": {"type": "string"},
                "password": {"type": "string"},
                "institutionId": {"type": "string"}
            }
        },
        "LoginResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "expiresIn": {"type": "integer"},
                "issuedAt": {"type": "string", "format": "date-time"},
                "user": {"$ref": "#/definitions/UserInfo"}
            }
        },
        "RegisterRequest": {
            "type": "object",
            "required": ["username", "email", "password", "institutionId"],
            "properties": {
                "username": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string"},
                "firstName": {"type": "string"},
                "lastName": {"type": "string"},
                "institutionId": {"type": "string"},
                "role": {"type": "string", "enum": ["STAFF", "STUDENT"]}
            }
        },
        "PasswordResetRequest": {
            "type": "object",
            "properties": {"email": {"type": "string"}}
        },
        "ResetPasswordRequest": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "newPassword": {"type": "string"}
            }
        },
        "ValidateTokenRequest": {
            "type": "object",
            "properties": {"token": {"type": "string"}}
        },
        "ValidateTokenResponse": {
            "type": "object",
            "properties": {
                "valid": {"type": "boolean"},
                "user": {"type": "object"}
            }
        },
        "UserInfo": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "username": {"type": "string"},
                "email": {"type": "string"},
                "firstName": {"type": "string"},
                "lastName": {"type": "string"},
                "role": {"type": "string", "enum": ["STUDENT", "STAFF", "HOD", "IMPLEMENTOR"]},
                "institutionId": {"type": "string"},
                "emailVerified": {"type": "boolean"}
            }
        },
        "Document": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "version": {"type": "string"},
                "revision": {"type": "string"},
                "content": {"type": "string"},
                "mimeType": {"type": "string"},
                "sizeBytes": {"type": "integer"},
                "status": {"type": "string", "enum": ["DRAFT", "PUBLISHED"]},
                "category": {"type": "string"},
                "institutionId": {"type": "string"},
                "createdById": {"type": "string"},
                "createdAt": {"type": "string", "format": "date-time"},
                "updatedAt": {"type": "string", "format": "date-time"}
            }
        },
        "CreateDocumentRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "version": {"type": "string"},
                "revision": {"type": "string"},
                "category": {"type": "string"},
                "status": {"type": "string"},
                "content": {"type": "string"}
            }
        },
        "UpdateDocumentRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "version": {"type": "string"},
                "revision": {"type": "string"},
                "category": {"type": "string"},
                "status": {"type": "string"},
                "content": {"type": "string"}
            }
        },
        "ContentLinkResponse": {
            "type": "object",
            "properties": {
                "url": {"type": "string"},
                "expiresAt": {"type": "string", "format": "date-time"}
            }
        },
        "Change": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "documentId": {"type": "string"},
                "institutionId": {"type": "string"},
                "sectionIndex": {"type": "integer"},
                "clause": {"type": "string"},
                "proposedChange": {"type": "string"},
                "justification": {"type": "string"},
                "status": {"type": "string", "enum": ["PENDING", "APPROVED", "REJECTED", "IMPLEMENTED"]},
                "proposerId": {"type": "string"},
                "hodId": {"type": "string"},
                "rejectionReason": {"type": "string"},
                "implementorId": {"type": "string"},
                "reviewedAt": {"type": "string", "format": "date-time"},
                "implementedAt": {"type": "string", "format": "date-time"}
            }
        },
        "ProposeChangeRequest": {
            "type": "object",
            "required": ["proposedChange", "justification"],
            "properties": {
                "clause": {"type": "string"},
                "proposedChange": {"type": "string"},
                "justification": {"type": "string"},
                "sectionIndex": {"type": "integer"}
            }
        },
        "ReviewChangeRequest": {
            "type": "object",
            "required": ["status"],
            "properties": {
                "status": {"type": "string", "enum": ["APPROVED", "REJECTED"]},
                "rejectionReason": {"type": "string"}
            }
        },
        "RevisionRequestPayload": {
            "type": "object",
            "required": ["documentId", "proposedClause", "justification"],
            "properties": {
                "documentId": {"type": "string"},
                "sectionIndex": {"type": "integer"},
                "currentClause": {"type": "string"},
                "proposedClause": {"type": "string"},
                "justification": {"type": "string"}
            }
        },
        "DashboardResponse": {
            "type": "object",
            "properties": {
                "user": {"$ref": "#/definitions/UserInfo"},
                "documents": {"type": "array", "items": {"$ref": "#/definitions/Document"}},
                "actionable": {"type": "array", "items": {"$ref": "#/definitions/Change"}}
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
