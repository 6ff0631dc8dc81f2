package contract

import "testforge/internal/types"

// Stage schemas verify the *filled* payload, so they can demand what the
// fill pass guarantees: list-typed fields with at least one entry. The
// fill logic stays the authority on coercion; the schema is the tripwire
// for regressions in it.
var stageSchemas = map[string]string{
	types.StageRequirementAnalyst: `{
	  "type": "object",
	  "required": ["functional_requirements", "non_functional_requirements", "test_scenarios", "risk_areas"],
	  "properties": {
	    "functional_requirements": {"type": "array", "minItems": 1, "items": {"type": "string"}},
	    "non_functional_requirements": {"type": "array", "minItems": 1, "items": {"type": "string"}},
	    "risk_areas": {"type": "array", "minItems": 1, "items": {"type": "string"}},
	    "test_scenarios": {
	      "type": "array", "minItems": 1,
	      "items": {
	        "type": "object",
	        "required": ["id", "description"],
	        "properties": {
	          "id": {"type": "string", "pattern": "^TS[0-9]{3,}$"},
	          "description": {"type": "string", "minLength": 1}
	        }
	      }
	    }
	  }
	}`,
	types.StageTestDesigner: `{
	  "type": "object",
	  "required": ["test_approach", "coverage_matrix", "priorities", "resource_estimation"],
	  "properties": {
	    "test_approach": {
	      "type": "object",
	      "required": ["methodology", "tools", "frameworks"],
	      "properties": {
	        "methodology": {"type": "array", "minItems": 1},
	        "tools": {"type": "array", "minItems": 1},
	        "frameworks": {"type": "array", "minItems": 1}
	      }
	    },
	    "coverage_matrix": {
	      "type": "array", "minItems": 1,
	      "items": {
	        "type": "object",
	        "required": ["feature", "test_type"],
	        "properties": {
	          "feature": {"type": "string", "minLength": 1},
	          "test_type": {"type": "string", "minLength": 1}
	        }
	      }
	    },
	    "priorities": {
	      "type": "array", "minItems": 1,
	      "items": {
	        "type": "object",
	        "required": ["level"],
	        "properties": {"level": {"type": "string", "minLength": 1}}
	      }
	    },
	    "resource_estimation": {
	      "type": "object",
	      "required": ["time", "personnel", "tools"]
	    }
	  }
	}`,
	types.StageTestCaseWriter: `{
	  "type": "object",
	  "required": ["test_cases"],
	  "properties": {
	    "test_cases": {
	      "type": "array",
	      "items": {
	        "type": "object",
	        "required": ["id", "title", "steps", "expected_results", "priority", "category"],
	        "properties": {
	          "id": {"type": "string", "pattern": "^TC[0-9]{3,}$"},
	          "title": {"type": "string", "minLength": 1},
	          "steps": {"type": "array", "minItems": 1, "items": {"type": "string"}},
	          "expected_results": {"type": "array", "minItems": 1, "items": {"type": "string"}},
	          "priority": {"type": "string"},
	          "category": {"type": "string", "minLength": 1}
	        }
	      }
	    }
	  }
	}`,
	types.StageQualityReviewer: `{
	  "type": "object",
	  "required": ["test_cases", "comments", "status"],
	  "properties": {
	    "status": {"enum": ["completed", "incomplete", "error"]},
	    "comments": {
	      "type": "object",
	      "required": ["completeness", "clarity", "executability", "boundary_cases", "error_scenarios"]
	    }
	  }
	}`,
}
