// Package config loads and validates the study configuration.
//
// # Configuration Sources
//
// Values are layered, later sources overriding earlier ones:
//
//	1. Default() values
//	2. A YAML file given with --config, or the first of ConfigLocations
//	3. Environment variables with the MEGACAP_ prefix
//
// # Environment Variables
//
// Section and field names are joined with underscores:
//
//	MEGACAP_LOGGING_LEVEL=debug
//	MEGACAP_PATHS_DATA_DIR=/srv/megacap/data
//	MEGACAP_ESTIMATION_MIN_OBSERVATIONS=60
//	MEGACAP_ESTIMATION_CROSS_SECTION_RETURNS=excess
//	MEGACAP_FACTORS_VALUE_SOURCE=mega
//
// Size factor rules are a list and can only be set in the YAML file:
//
//	factors:
//	  size:
//	    - name: SMB_50
//	      kind: rank_range
//	      long:  {name: Small_50, from: 101, to: 200}
//	      short: {name: Big_50, from: 1, to: 100}
//	    - name: SMB_Q5Q1
//	      kind: quantile
//	      quantiles: 5
//	      long_bucket: 5
//	      short_bucket: 1
//
// # Validation
//
// Struct tags are checked with go-playground/validator, then each size rule
// is checked for ordered, non-overlapping rank ranges or valid bucket
// indexes. Failures are returned as CONFIG application errors.
package config
