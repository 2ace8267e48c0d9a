// Package netcfg performs network mode transition stages on a Linux host.
//
// Shell implements netmode.Configurator by rendering hostapd and dnsmasq
// configuration files, writing them atomically, and invoking ip, iptables,
// nmcli, sysctl, killall, hostapd and dnsmasq through a Runner. Commands are executed
// directly with os/exec, never through a shell, so SSIDs and passphrases are
// passed as single arguments. Passphrases are redacted from every logged or
// returned command line.
//
// Stage to command mapping:
//
//	write-hostapd-config  render + atomic write of hostapd.conf
//	write-dhcp-config     render + atomic write of dnsmasq.conf
//	stop-dhcp-server      killall dnsmasq            (exit 1 = nothing running, ok)
//	interface-up          ip link set <lan> up
//	assign-static-ip      ip addr flush dev <lan>; ip addr add <ip>/<prefix> dev <lan>
//	enable-ip-forwarding  sysctl -w net.ipv4.ip_forward=1
//	flush-nat-rules       iptables flush + delete chains, filter and nat tables
//	apply-nat-rules       FORWARD accept, POSTROUTING MASQUERADE, optional DNS DNAT
//	start-dhcp-server     dnsmasq -C <conf> --interface=<lan>
//	restart-access-point  killall hostapd; hostapd -B <conf>
//	stop-access-point     killall hostapd
//	radio-cycle           nmcli radio wifi off; nmcli radio wifi on
//	rescan                nmcli device wifi rescan
//	associate             nmcli device wifi connect <ssid> password <psk>
//
// Use NewLogRunner instead of NewExecRunner for a dry run that only logs
// commands. Configuration files are still written in a dry run.
package netcfg
