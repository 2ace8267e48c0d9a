// Package config provides the softap daemon configuration.
//
// The configuration is a YAML file, /etc/softap/config.yaml by default.
// Values present in the file override Default(); a missing file means the
// defaults are used as they are. Command line flags on softap-server override
// both.
//
// # Example
//
//	version: 1
//	access_point:
//	  ssid: MySoftAP
//	  passphrase: mypassword
//	  static_ip: 192.168.43.1
//	  prefix_len: 24
//	  lan_interface: wlan1
//	  wan_interface: wlan0
//	  dhcp_range_start: 192.168.43.2
//	  dhcp_range_end: 192.168.43.60
//	  channel: 6
//	  dns_redirect: 114.114.114.114
//	server:
//	  port: 8080
//	  page_path: /usr/share/softap/index.html
//	  read_timeout: 10s
//	  exit_on_provision: true
//	status:
//	  port: 8081
//	network:
//	  config_dir: /etc/softap
//	  command_timeout: 30s
//	  dry_run: false
//
// # Security
//
// Station credentials received by the daemon are never written to this file.
// Save writes with 0600 permissions because the file carries the setup
// network passphrase.
package config
