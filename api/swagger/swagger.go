package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Institute Grading API",
        "description": "Grade entry, distribution profiles and computed results",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Distributions", "description": "Grade distribution profiles per education level and study system"},
        {"name": "Grades", "description": "Raw score entry, bulk import and eligibility"},
        {"name": "Results", "description": "Final results recomputed on read"},
        {"name": "Metrics", "description": "Grading counters"}
    ],
    "paths": {
        "/distribution-profiles": {
            "get": {
                "tags": ["Distributions"],
                "summary": "List distribution profiles",
                "parameters": [
                    {"name": "level", "in": "query", "type": "string"},
                    {"name": "system", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Distributions"],
                "summary": "Create distribution profile",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DistributionProfileRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "DUPLICATE_CONFIGURATION", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/distribution-profiles/resolve": {
            "get": {
                "tags": ["Distributions"],
                "summary": "Resolve governing distribution",
                "parameters": [
                    {"name": "level", "in": "query", "required": true, "type": "string"},
                    {"name": "system", "in": "query", "required": true, "type": "string"},
                    {"name": "subject", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "CONFIGURATION_NOT_FOUND", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/distribution-profiles/{id}": {
            "get": {
                "tags": ["Distributions"],
                "summary": "Get distribution profile",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Distributions"],
                "summary": "Replace distribution profile",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DistributionProfileRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Distributions"],
                "summary": "Delete distribution profile",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/students/{id}/eligibility": {
            "get": {
                "tags": ["Grades"],
                "summary": "Grade entry eligibility",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grades": {
            "get": {
                "tags": ["Grades"],
                "summary": "List grade records",
                "parameters": [
                    {"name": "studentId", "in": "query", "type": "string"},
                    {"name": "subjectId", "in": "query", "type": "string"},
                    {"name": "academicYear", "in": "query", "type": "string"},
                    {"name": "period", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Grades"],
                "summary": "Enter period grades",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GradeEntryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "GRADE_REJECTED or INELIGIBLE_PERIOD", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Grades"],
                "summary": "Reset a period record",
                "parameters": [
                    {"name": "studentId", "in": "query", "required": true, "type": "string"},
                    {"name": "subjectId", "in": "query", "required": true, "type": "string"},
                    {"name": "academicYear", "in": "query", "required": true, "type": "string"},
                    {"name": "period", "in": "query", "required": true, "type": "integer"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/grades/import": {
            "post": {
                "tags": ["Grades"],
                "summary": "Bulk import grades",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GradeImportRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/students/{id}": {
            "get": {
                "tags": ["Results"],
                "summary": "Student transcript",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "academicYear", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/students/{id}/subjects/{subjectId}": {
            "get": {
                "tags": ["Results"],
                "summary": "Subject final result",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "subjectId", "in": "path", "required": true, "type": "string"},
                    {"name": "academicYear", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/students/{id}/export": {
            "get": {
                "tags": ["Results"],
                "summary": "Export transcript",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "academicYear", "in": "query", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "Transcript file", "schema": {"type": "file"}}
                }
            }
        },
        "/results/top": {
            "get": {
                "tags": ["Results"],
                "summary": "Top students of a subject",
                "parameters": [
                    {"name": "level", "in": "query", "required": true, "type": "string"},
                    {"name": "system", "in": "query", "required": true, "type": "string"},
                    {"name": "subjectId", "in": "query", "required": true, "type": "string"},
                    {"name": "academicYear", "in": "query", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer", "default": 10}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/results/review": {
            "get": {
                "tags": ["Results"],
                "summary": "Failed and incomplete results of a subject",
                "parameters": [
                    {"name": "level", "in": "query", "required": true, "type": "string"},
                    {"name": "system", "in": "query", "required": true, "type": "string"},
                    {"name": "subjectId", "in": "query", "required": true, "type": "string"},
                    {"name": "academicYear", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Grading metrics summary",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "PeriodDistribution": {
            "type": "object",
            "properties": {
                "months_count": {"type": "integer", "minimum": 0, "maximum": 3},
                "monthly_grade": {"type": "number"},
                "monthly_average": {"type": "number"},
                "period_exam": {"type": "number"},
                "period_total": {"type": "number"}
            }
        },
        "DistributionProfileRequest": {
            "type": "object",
            "properties": {
                "education_level": {"type": "string", "example": "FIRST_YEAR"},
                "study_system": {"type": "string", "example": "REGULAR"},
                "first_period": {"$ref": "#/definitions/PeriodDistribution"},
                "second_period": {"$ref": "#/definitions/PeriodDistribution"},
                "third_period": {"$ref": "#/definitions/PeriodDistribution"},
                "two_periods_weight": {"type": "number"},
                "third_period_weight": {"type": "number"},
                "total_grade": {"type": "number"}
            },
            "required": ["education_level", "study_system"]
        },
        "GradeEntryRequest": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "academic_year": {"type": "string", "example": "2024/2025"},
                "period": {"type": "integer", "minimum": 1, "maximum": 3},
                "month1": {"type": "number"},
                "month2": {"type": "number"},
                "month3": {"type": "number"},
                "exam_score": {"type": "number"}
            },
            "required": ["student_id", "subject_id", "academic_year", "period"]
        },
        "GradeImportRow": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "period": {"type": "integer", "minimum": 1, "maximum": 3},
                "month1": {"type": "number"},
                "month2": {"type": "number"},
                "month3": {"type": "number"},
                "exam_score": {"type": "number"}
            },
            "required": ["student_id", "subject_id", "period"]
        },
        "GradeImportRequest": {
            "type": "object",
            "properties": {
                "academic_year": {"type": "string"},
                "rows": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/GradeImportRow"}
                }
            },
            "required": ["academic_year", "rows"]
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
