package workload

// images maps each supported monitor_type to the container image that
// collects its samples. Adding a monitor type means adding an entry here
// and a matching JSON Schema in internal/schema.
var images = map[string]string{
	"http_probe": "ghcr.io/monitorplane/collectors/http-probe:latest",
	"price_feed": "ghcr.io/monitorplane/collectors/price-feed:latest",
	"log_tail":   "ghcr.io/monitorplane/collectors/log-tail:latest",
}

// ImageFor returns the collector image for a monitor type, and whether
// that type is known.
func ImageFor(monitorType string) (string, bool) {
	img, ok := images[monitorType]
	return img, ok
}
