package netmode

import "context"

// Stage names one individually-failable external configuration action.
type Stage string

// Access point stages.
const (
	StageWriteHostapdConfig Stage = "write-hostapd-config"
	StageWriteDHCPConfig    Stage = "write-dhcp-config"
	StageStopDHCPServer     Stage = "stop-dhcp-server"
	StageInterfaceUp        Stage = "interface-up"
	StageAssignStaticIP     Stage = "assign-static-ip"
	StageEnableForwarding   Stage = "enable-ip-forwarding"
	StageFlushNATRules      Stage = "flush-nat-rules"
	StageApplyNATRules      Stage = "apply-nat-rules"
	StageStartDHCPServer    Stage = "start-dhcp-server"
	StageRestartAccessPoint Stage = "restart-access-point"
)

// Station stages.
const (
	StageStopAccessPoint Stage = "stop-access-point"
	StageRadioCycle      Stage = "radio-cycle"
	StageRescan          Stage = "rescan"
	StageAssociate       Stage = "associate"
)

// AccessPointPlan is the ordered list of stages that brings the AP up.
// Every stage is idempotent: files are rewritten, addresses and rule sets
// are flushed before being applied, daemons are stopped before being started.
var AccessPointPlan = []Stage{
	StageWriteHostapdConfig,
	StageWriteDHCPConfig,
	StageStopDHCPServer,
	StageInterfaceUp,
	StageAssignStaticIP,
	StageEnableForwarding,
	StageFlushNATRules,
	StageApplyNATRules,
	StageStartDHCPServer,
	StageRestartAccessPoint,
}

// StationPlan tears the AP down and joins the target network.
var StationPlan = []Stage{
	StageStopAccessPoint,
	StageStopDHCPServer,
	StageRadioCycle,
	StageRescan,
	StageAssociate,
}

// optionalStages may fail without failing the transition.
var optionalStages = map[Stage]bool{
	StageRescan: true,
}

// Optional reports whether a failure of s is logged and ignored.
func (s Stage) Optional() bool {
	return optionalStages[s]
}

// Action is one request to the external configuration collaborator.
// Exactly one of AccessPoint and Station is set, depending on the plan the
// stage belongs to.
type Action struct {
	Stage       Stage
	AccessPoint *AccessPointConfig
	Station     *StationCredentials
}

// Configurator performs external configuration actions. Only success or
// failure is reported; the controller never inspects tool output.
type Configurator interface {
	Apply(ctx context.Context, action Action) error
}

// ConfiguratorFunc adapts a function to the Configurator interface.
type ConfiguratorFunc func(ctx context.Context, action Action) error

// Apply calls f(ctx, action).
func (f ConfiguratorFunc) Apply(ctx context.Context, action Action) error {
	return f(ctx, action)
}
