package auditlog

// ExportSchemaURL identifies the embedded schema for exported logs.
const ExportSchemaURL = "https://schemas.qfs.dev/certmath/audit-log/v1.json"

// exportSchema is the JSON Schema (draft 2020-12) of a finalized export.
const exportSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://schemas.qfs.dev/certmath/audit-log/v1.json",
  "type": "array",
  "items": {
    "type": "object",
    "additionalProperties": false,
    "required": [
      "entry_hash", "inputs", "log_index", "operation", "outputs",
      "pqc_cid", "prev_hash", "quantum_metadata", "system_fingerprint", "timestamp"
    ],
    "properties": {
      "log_index": {"type": "integer", "minimum": 0},
      "operation": {"type": "string", "minLength": 1},
      "inputs": {"$ref": "#/$defs/stringMap"},
      "outputs": {"$ref": "#/$defs/stringMap"},
      "pqc_cid": {"type": ["string", "null"]},
      "quantum_metadata": {
        "$ref": "#/$defs/stringMap",
        "propertyNames": {
          "enum": ["quantum_seed", "vdf_output_hash", "entanglement_index", "quantum_source_id", "quantum_entropy"]
        }
      },
      "timestamp": {"type": "integer", "minimum": -9007199254740991, "maximum": 9007199254740991},
      "entry_hash": {"$ref": "#/$defs/hash"},
      "prev_hash": {"$ref": "#/$defs/hash"},
      "system_fingerprint": {"$ref": "#/$defs/hash"}
    }
  },
  "$defs": {
    "hash": {"type": "string", "pattern": "^[0-9a-f]{64}$"},
    "stringMap": {"type": "object", "additionalProperties": {"type": "string"}}
  }
}`
