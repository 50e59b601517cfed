// Package docs is generated by swag from the handler annotations.
// Regenerate with: swag init -g cmd/app/main.go
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
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.HealthResponse"}}
                }
            }
        },
        "/plans": {
            "get": {
                "produces": ["application/json"],
                "tags": ["plans"],
                "summary": "List active plans with price breakdown",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/me/membership": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["membership"],
                "summary": "Current subscription window and plan",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/me/renewals": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["renewals"],
                "summary": "Renew membership",
                "parameters": [
                    {"description": "Plan and payment method", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/renewal.RenewRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "202": {"description": "Accepted"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.ValidationErrorResponse"}},
                    "402": {"description": "Payment Required", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/api.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/api.ErrorResponse"}}
                }
            }
        },
        "/admin/plans/{planID}": {
            "delete": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["plans"],
                "summary": "Delete a plan",
                "parameters": [
                    {"type": "integer", "description": "Plan ID", "name": "planID", "in": "path", "required": true},
                    {"type": "boolean", "description": "Acknowledge affected members", "name": "confirm", "in": "query"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.PlanInUseResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string", "example": "something went wrong"}}
        },
        "api.HealthResponse": {
            "type": "object",
            "properties": {"status": {"type": "string", "example": "ok"}}
        },
        "api.PlanInUseResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "member_count": {"type": "integer", "example": 3},
                "requires_confirmation": {"type": "boolean", "example": true}
            }
        },
        "api.ValidationError": {
            "type": "object",
            "properties": {
                "field": {"type": "string"},
                "tag": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "api.ValidationErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "validation failed"},
                "details": {"type": "array", "items": {"$ref": "#/definitions/api.ValidationError"}}
            }
        },
        "renewal.RenewRequest": {
            "type": "object",
            "required": ["payment_method", "plan_id"],
            "properties": {
                "payment_method": {"type": "string", "example": "STRIPE"},
                "plan_id": {"type": "integer", "example": 4}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "GymFlow API",
	Description:      "Membership plans, renewals and payments for gyms.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
