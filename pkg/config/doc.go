/*
Package config loads fillswap configuration from YAML, HCL or JSON files.

	            +-------------+
	            |   Config    |
	            | (Settings)  |
	            +------+------+
	                   |
	      +------------+------------+
	      |            |            |
	+-----+----+ +-----+----+ +-----+----+
	|   YAML   | |   HCL    | |   JSON   |
	|  Parser  | |  Parser  | |  Parser  |
	+----------+ +----------+ +----------+

🎯 Purpose:
- Picks a parser by file extension from a small registry
- Decodes on top of Default() so omitted values keep their defaults
- Validates and normalizes values (scope, match mode, extensions, log level)
- Converts the result into options for the source loader, matcher and session

🔄 Flow:
 1. Load reads the file and asks GetParser for a parser
 2. The parser decodes into a copy of Default()
 3. Validate normalizes in place and reports the first problem

📝 Format:

	scope = "page"              # selection | page | document

	match {
	  mode              = "fuzzy"
	  ignore_separators = true
	  prefix_match      = false
	}

	sources {
	  extensions      = ["png", "jpg", "jpeg", "gif", "webp"]
	  ignore          = ["drafts/**"]
	  recursive       = false
	  max_concurrency = 8
	  max_file_size   = 20971520
	}

	replace {
	  image_cache_size = 128
	}

	server {
	  addr             = env.FILLSWAP_ADDR
	  max_snapshot_age = "2m"
	}

	log {
	  level = "info"
	}

The YAML and JSON forms use the same keys. Unknown keys are rejected in every format.
*/
package config
