// Package docs registers the OpenAPI document served at /swagger/*.
// Regenerate with `swag init -g cmd/server/main.go` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/signup": {"post": {"tags": ["auth"], "summary": "Register a client account", "responses": {"201": {"description": "Created"}, "409": {"description": "Email taken"}, "422": {"description": "Validation failed"}}}},
        "/login": {"post": {"tags": ["auth"], "summary": "Exchange credentials for a bearer token", "responses": {"200": {"description": "OK"}, "401": {"description": "Invalid credentials"}}}},
        "/me": {"get": {"security": [{"BearerAuth": []}], "tags": ["auth"], "summary": "Current user", "responses": {"200": {"description": "OK"}}}},
        "/drafts/validate": {"post": {"security": [{"BearerAuth": []}], "tags": ["drafts"], "summary": "Validate one step of a claim draft", "responses": {"200": {"description": "OK"}, "422": {"description": "Validation failed"}}}},
        "/drafts/advance": {"post": {"security": [{"BearerAuth": []}], "tags": ["drafts"], "summary": "Validate the current step and move the draft forward", "responses": {"200": {"description": "OK"}, "422": {"description": "Validation failed"}}}},
        "/claims": {"post": {"security": [{"BearerAuth": []}], "tags": ["claims"], "summary": "Submit a claim draft", "responses": {"201": {"description": "Created"}, "422": {"description": "Validation failed"}, "429": {"description": "Too many requests"}}}},
        "/claims/mine": {"get": {"security": [{"BearerAuth": []}], "tags": ["claims"], "summary": "List the caller's claims", "responses": {"200": {"description": "OK"}}}},
        "/claims/mine/counts": {"get": {"security": [{"BearerAuth": []}], "tags": ["claims"], "summary": "Count the caller's claims by status", "responses": {"200": {"description": "OK"}}}},
        "/claims/{id}": {"get": {"security": [{"BearerAuth": []}], "tags": ["claims"], "summary": "Claim detail", "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}, "404": {"description": "Not found"}}}},
        "/claims/{id}/history": {"get": {"security": [{"BearerAuth": []}], "tags": ["claims"], "summary": "Status history of a claim", "responses": {"200": {"description": "OK"}}}},
        "/claims/{id}/documents": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["documents"], "summary": "List claim documents", "responses": {"200": {"description": "OK"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["documents"], "summary": "Attach documents to a claim", "responses": {"201": {"description": "Created"}, "409": {"description": "Claim closed or too many files"}, "422": {"description": "No file stored"}}}
        },
        "/documents/{docID}/signed-url": {"get": {"security": [{"BearerAuth": []}], "tags": ["documents"], "summary": "Short-lived download link", "responses": {"200": {"description": "OK"}}}},
        "/admin/claims": {"get": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "List claims for review", "responses": {"200": {"description": "OK"}}}},
        "/admin/claims/counts": {"get": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "Count claims by status", "responses": {"200": {"description": "OK"}}}},
        "/admin/claims/{id}": {"get": {"security": [{"BearerAuth": []}], "tags": ["admin"], "summary": "Claim detail with next statuses", "responses": {"200": {"description": "OK"}}}},
        "/admin/claims/{id}/decisions": {"post": {"security": [{"BearerAuth": []}], "tags": ["review"], "summary": "Apply a staff decision to a claim", "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}, "422": {"description": "Validation failed"}}}},
        "/admin/claims/{id}/priority": {"put": {"security": [{"BearerAuth": []}], "tags": ["review"], "summary": "Reassign a claim's review priority", "responses": {"200": {"description": "OK"}}}}
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Format: Bearer <token>",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{"http"},
	Title:            "Insurance Claims API",
	Description:      "Claim submission, document attachment and staff review for an insurance claims portal.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
