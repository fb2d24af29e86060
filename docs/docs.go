// Package docs registers the Swagger description served at /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/deals": {
            "post": {"summary": "Create a deal", "tags": ["deals"]}
        },
        "/deals/query": {
            "post": {"summary": "Filtered, sorted deal listing", "tags": ["deals"]}
        },
        "/deals/refresh": {
            "post": {"summary": "Reload deals from the system of record", "tags": ["deals"]}
        },
        "/deals/{id}": {
            "get": {"summary": "Fetch a deal", "tags": ["deals"]},
            "put": {"summary": "Edit a deal", "tags": ["deals"]},
            "delete": {"summary": "Delete a deal", "tags": ["deals"]}
        },
        "/deals/{id}/stage": {
            "put": {"summary": "Move a deal to another stage", "tags": ["deals"]}
        },
        "/board": {
            "get": {"summary": "Stage-grouped board projection", "tags": ["deals"]}
        },
        "/sync/tasks": {
            "get": {"summary": "In-flight sync operations", "tags": ["sync"]}
        },
        "/stages": {
            "get": {"summary": "List pipeline stages", "tags": ["stages"]},
            "post": {"summary": "Add a stage", "tags": ["stages"]}
        },
        "/stages/reorder": {
            "post": {"summary": "Reorder the pipeline", "tags": ["stages"]}
        },
        "/stages/{id}": {
            "put": {"summary": "Rename a stage", "tags": ["stages"]},
            "delete": {"summary": "Remove a stage, optionally reassigning its deals", "tags": ["stages"]}
        },
        "/fields": {
            "get": {"summary": "List custom field definitions", "tags": ["fields"]},
            "post": {"summary": "Register a custom field", "tags": ["fields"]}
        },
        "/fields/{id}": {
            "delete": {"summary": "Remove a custom field definition", "tags": ["fields"]}
        },
        "/reports/pipeline.pdf": {
            "get": {"summary": "Pipeline report as PDF", "tags": ["reports"]}
        }
    }
}`

var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "pipecrm API",
	Description:      "Deal-pipeline synchronization engine and CRM API",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
