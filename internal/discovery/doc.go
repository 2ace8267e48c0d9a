// Package discovery announces and finds softap daemons over mDNS.
//
// The daemon registers a "_softap._tcp" service on the access point
// interface so that a laptop joined to the setup network can find it without
// knowing the static address. TXT records carry:
//
//	path=/index.html     configuration page
//	status_port=8081     status API port, absent when disabled
//	version=1.0.0        daemon version
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	devices, err := scanner.ScanForDevices(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range devices {
//	    fmt.Println(d.Instance, d.BaseURL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Firewall must allow mDNS (UDP port 5353)
package discovery
