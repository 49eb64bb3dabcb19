package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SeatWatch Ops API",
        "description": "Operational surface of the seat monitor: probes, catalog inspection and scheduler control",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Ops", "description": "Probes and metrics"},
        {"name": "Sections", "description": "Monitored catalog"},
        {"name": "Status", "description": "Scheduler progress"},
        {"name": "Admin", "description": "Operator commands"}
    ],
    "paths": {
        "/health": {
            "get": {
                "tags": ["Ops"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ready": {
            "get": {
                "tags": ["Ops"],
                "summary": "Readiness probe",
                "description": "Pings the catalog store and redis when enabled",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "A dependency is unavailable"}
                }
            }
        },
        "/metrics": {
            "get": {
                "tags": ["Ops"],
                "summary": "Prometheus metrics",
                "produces": ["text/plain"],
                "responses": {"200": {"description": "Exposition format"}}
            }
        },
        "/api/v1/sections": {
            "get": {
                "tags": ["Sections"],
                "summary": "List monitored sections",
                "parameters": [
                    {"name": "courseCode", "in": "query", "type": "string"},
                    {"name": "full", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid filter", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/sections/{courseCode}/{sectionNumber}": {
            "get": {
                "tags": ["Sections"],
                "summary": "Get one section",
                "parameters": [
                    {"name": "courseCode", "in": "path", "required": true, "type": "string"},
                    {"name": "sectionNumber", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/status": {
            "get": {
                "tags": ["Status"],
                "summary": "Scheduler status and last cycle report",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/resync": {
            "post": {
                "tags": ["Admin"],
                "summary": "Request a catalog resync on the next cycle",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Scheduled", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Missing or invalid token"},
                    "403": {"description": "Not an admin"}
                }
            }
        }
    },
    "definitions": {
        "Section": {
            "type": "object",
            "properties": {
                "course_code": {"type": "string"},
                "section_number": {"type": "string"},
                "title": {"type": "string"},
                "instructor": {"type": "string"},
                "schedule": {"type": "string"},
                "classroom": {"type": "string"},
                "department": {"type": "string"},
                "credits": {"type": "string"},
                "capacity_text": {"type": "string"},
                "enrolled_count": {"type": "integer"},
                "is_full": {"type": "boolean"},
                "created_at": {"type": "string", "format": "date-time"},
                "updated_at": {"type": "string", "format": "date-time"}
            }
        },
        "CycleReport": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "cycle": {"type": "integer"},
                "state": {"type": "string", "enum": ["polling", "resyncing"]},
                "started_at": {"type": "string", "format": "date-time"},
                "finished_at": {"type": "string", "format": "date-time"},
                "resynced": {"type": "boolean"},
                "sections_inserted": {"type": "integer"},
                "pages_requested": {"type": "integer"},
                "pages_failed": {"type": "integer"},
                "snapshots": {"type": "integer"},
                "opened": {"type": "integer"},
                "filled": {"type": "integer"},
                "unchanged": {"type": "integer"},
                "skipped": {"type": "integer"},
                "invalid": {"type": "integer"},
                "failed": {"type": "integer"},
                "notifications_delivered": {"type": "integer"}
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
                "meta": {"type": "object", "properties": {"request_id": {"type": "string"}}}
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
