package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Lingua API",
        "description": "Cohort seat holds, checkout and payment settlement for the language school.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Checkout", "description": "Seat holds and payment sessions"},
        {"name": "Webhooks", "description": "Payment processor notifications"},
        {"name": "Cohorts", "description": "Open cohort catalog"},
        {"name": "Learner", "description": "Signed-in learner dashboard"},
        {"name": "Admin", "description": "Staff tools"},
        {"name": "Receipts", "description": "Signed receipt downloads"}
    ],
    "paths": {
        "/checkout/session": {
            "post": {
                "tags": ["Checkout"],
                "summary": "Hold a cohort seat and open a checkout session",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CheckoutSessionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Redirect URL", "schema": {"$ref": "#/definitions/CheckoutResponse"}},
                    "400": {"description": "Invalid request", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "404": {"description": "Cohort not found", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "409": {"description": "Cohort closed, unpriced or full", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "500": {"description": "Processor or storage failure", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/checkout/price": {
            "post": {
                "tags": ["Checkout"],
                "summary": "Open a checkout session for a price",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PriceCheckoutRequest"}}
                ],
                "responses": {
                    "200": {"description": "Redirect URL", "schema": {"$ref": "#/definitions/CheckoutResponse"}},
                    "400": {"description": "Invalid price id", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "500": {"description": "Processor failure", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/stripe/webhook": {
            "post": {
                "tags": ["Webhooks"],
                "summary": "Receive a signed payment notification",
                "parameters": [
                    {"name": "Stripe-Signature", "in": "header", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Acknowledged", "schema": {"$ref": "#/definitions/WebhookAck"}},
                    "400": {"description": "Bad signature", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "500": {"description": "Processing failed, retry", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/cohorts": {
            "get": {
                "tags": ["Cohorts"],
                "summary": "List open cohorts with seats left",
                "parameters": [
                    {"name": "language", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/me/enrollments": {
            "get": {
                "tags": ["Learner"],
                "summary": "List my cohort enrollments",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/me/credits": {
            "get": {
                "tags": ["Learner"],
                "summary": "Show my lesson credit balance",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/CreditBalanceResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/me/purchases": {
            "get": {
                "tags": ["Learner"],
                "summary": "List my purchases",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/me/lessons": {
            "post": {
                "tags": ["Learner"],
                "summary": "Book a paid lesson with one credit",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BookLessonRequest"}}
                ],
                "responses": {
                    "201": {"description": "Booked", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "402": {"description": "Not enough credits", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/admin/purchases": {
            "get": {
                "tags": ["Admin"],
                "summary": "List the purchase log",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "email", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        },
        "/admin/purchases/export": {
            "get": {
                "tags": ["Admin"],
                "summary": "Download the purchase log",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File", "schema": {"type": "file"}}
                }
            }
        },
        "/admin/credits": {
            "post": {
                "tags": ["Admin"],
                "summary": "Add or remove lesson credits",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AdjustCreditsRequest"}}
                ],
                "responses": {
                    "201": {"description": "Adjusted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/holds/purge": {
            "post": {
                "tags": ["Admin"],
                "summary": "Delete expired seat holds",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/receipts/{token}": {
            "get": {
                "tags": ["Receipts"],
                "summary": "Download a payment receipt",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF", "schema": {"type": "file"}},
                    "403": {"description": "Link expired", "schema": {"$ref": "#/definitions/ErrorBody"}},
                    "404": {"description": "Unknown receipt", "schema": {"$ref": "#/definitions/ErrorBody"}}
                }
            }
        }
    },
    "definitions": {
        "CheckoutSessionRequest": {
            "type": "object",
            "required": ["cohort_id", "lang"],
            "properties": {
                "cohort_id": {"type": "string"},
                "lang": {"type": "string", "enum": ["Italian", "German"]},
                "email": {"type": "string"}
            }
        },
        "PriceCheckoutRequest": {
            "type": "object",
            "required": ["price_id"],
            "properties": {
                "price_id": {"type": "string"},
                "lang": {"type": "string"},
                "email": {"type": "string"},
                "level": {"type": "string"},
                "start_date": {"type": "string"}
            }
        },
        "CheckoutResponse": {
            "type": "object",
            "properties": {"url": {"type": "string"}}
        },
        "WebhookAck": {
            "type": "object",
            "properties": {"received": {"type": "boolean"}}
        },
        "CreditBalanceResponse": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "credits": {"type": "integer"}
            }
        },
        "BookLessonRequest": {
            "type": "object",
            "required": ["when"],
            "properties": {
                "when": {"type": "string", "format": "date-time"},
                "notes": {"type": "string"}
            }
        },
        "AdjustCreditsRequest": {
            "type": "object",
            "required": ["email", "delta"],
            "properties": {
                "email": {"type": "string"},
                "delta": {"type": "integer"},
                "notes": {"type": "string"}
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
        "ErrorBody": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
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
