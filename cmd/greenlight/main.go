// Greenlight is a gating decision service. It answers "is this artifact
// ready to be released?" by evaluating configured policies against test
// results and waivers fetched from remote evidence stores.
//
// Usage:
//
//	# Start the API server with a configuration file
//	greenlight serve --config /etc/greenlight/config.yaml
//
//	# Evaluate one decision from the command line
//	greenlight decide --subject-type koji_build \
//	    --subject-identifier glibc-2.26-27.fc27 \
//	    --product-version fedora-27 \
//	    --decision-context bodhi_update_push_stable
//
//	# Validate policy files
//	greenlight lint --dir policies/
//
//	# Show version information
//	greenlight version
package main

func main() {
	Execute()
}
