package netcfg

import (
	"bytes"
	"fmt"
	"net"
	"text/template"

	"github.com/muurk/softap/internal/netmode"
)

const hostapdTemplate = `interface={{.LANInterface}}
ctrl_interface=/var/run/hostapd
driver=nl80211
ssid={{.SSID}}
channel={{.Channel}}
hw_mode=g
ieee80211n=1
ignore_broadcast_ssid=0
auth_algs=1
wpa=2
wpa_passphrase={{.Passphrase}}
wpa_key_mgmt=WPA-PSK
wpa_pairwise=TKIP
rsn_pairwise=CCMP
`

const dnsmasqTemplate = `user=root
interface={{.LANInterface}}
listen-address={{.StaticIP}}
dhcp-range={{.DHCPRangeStart}},{{.DHCPRangeEnd}},{{.Netmask}},24h
{{- if .DNSRedirect}}
server={{.DNSRedirect}}
{{- end}}
`

var (
	hostapdTmpl = template.Must(template.New("hostapd.conf").Parse(hostapdTemplate))
	dnsmasqTmpl = template.Must(template.New("dnsmasq.conf").Parse(dnsmasqTemplate))
)

// RenderHostapdConfig renders the hostapd configuration for cfg.
func RenderHostapdConfig(cfg netmode.AccessPointConfig) ([]byte, error) {
	var buf bytes.Buffer
	if err := hostapdTmpl.Execute(&buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to render hostapd config: %w", err)
	}
	return buf.Bytes(), nil
}

type dnsmasqParams struct {
	netmode.AccessPointConfig
	Netmask string
}

// RenderDnsmasqConfig renders the DHCP server configuration for cfg.
func RenderDnsmasqConfig(cfg netmode.AccessPointConfig) ([]byte, error) {
	params := dnsmasqParams{
		AccessPointConfig: cfg,
		Netmask:           prefixToNetmask(cfg.PrefixLen),
	}

	var buf bytes.Buffer
	if err := dnsmasqTmpl.Execute(&buf, params); err != nil {
		return nil, fmt.Errorf("failed to render dnsmasq config: %w", err)
	}
	return buf.Bytes(), nil
}

func prefixToNetmask(prefix int) string {
	if prefix <= 0 || prefix > 32 {
		prefix = 24
	}
	return net.IP(net.CIDRMask(prefix, 32)).String()
}
