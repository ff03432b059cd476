// Package config defines the configuration structure for greenlight and
// provides loading, defaulting and validation.
//
// Configuration is read from a YAML file, then environment variables of the
// form GREENLIGHT_SECTION_FIELD override individual values. A minimal file
// looks like:
//
//	resultsdb:
//	  url: https://resultsdb.example.com/api/v2.0
//	waiverdb:
//	  url: https://waiverdb.example.com/api/v1.0
//	policy:
//	  dir: /etc/greenlight/policies
//
// All other sections have working defaults. See Config for the full set of
// fields and their documentation.
package config
