package validation

// QueryRequestSchema describes the body of POST /v1/query.
const QueryRequestSchema = `{
  "type": "object",
  "required": ["sessionId", "text"],
  "properties": {
    "sessionId": {"type": "string", "minLength": 1, "maxLength": 128},
    "text": {"type": "string", "minLength": 1, "maxLength": 2000},
    "profile": {
      "type": "object",
      "properties": {
        "age": {"type": "integer", "minimum": 0, "maximum": 150},
        "region": {"type": "string"},
        "educationLevel": {"type": "string"},
        "income": {"type": "number", "minimum": 0},
        "occupation": {"type": "string"},
        "memberships": {"type": "object", "additionalProperties": {"type": "boolean"}}
      }
    }
  }
}`

// CatalogSchema describes a catalog document: {"services": [ServiceRecord...]}.
const CatalogSchema = `{
  "type": "object",
  "required": ["services"],
  "properties": {
    "version": {"type": "string"},
    "services": {
      "type": "array",
      "items": {"$ref": "#/definitions/service"}
    }
  },
  "definitions": {
    "service": {
      "type": "object",
      "required": ["id", "name", "category"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "name": {"type": "string", "minLength": 1},
        "category": {"enum": ["healthcare", "welfare", "employment", "education", "legal", "housing", "agriculture", "other"]},
        "subcategory": {"type": "string"},
        "description": {"type": "string"},
        "keywords": {"type": "array", "items": {"type": "string"}},
        "tags": {"type": "array", "items": {"type": "string"}},
        "regions": {"type": "array", "items": {"type": "string", "minLength": 1}},
        "popularity": {"type": "number", "minimum": 0},
        "lastUpdated": {"type": "string", "format": "date-time"},
        "inclusiveAccess": {"type": "boolean"},
        "officialSource": {
          "type": "object",
          "properties": {
            "name": {"type": "string"},
            "url": {"type": "string"}
          }
        },
        "criteria": {"type": "array", "items": {"$ref": "#/definitions/criterion"}}
      }
    },
    "criterion": {
      "type": "object",
      "required": ["id", "type"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "description": {"type": "string"},
        "type": {"enum": ["required", "preferred", "disqualifying"]},
        "checkable": {"type": "boolean"},
        "predicate": {
          "type": "object",
          "required": ["kind"],
          "properties": {
            "kind": {"enum": ["range", "enum", "membership", "custom"]},
            "attribute": {"type": "string"},
            "min": {"type": "number"},
            "max": {"type": "number"},
            "values": {"type": "array", "items": {"type": "string"}},
            "flag": {"type": "string"},
            "name": {"type": "string"}
          }
        }
      }
    }
  }
}`
