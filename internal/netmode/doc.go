// Package netmode switches the device between access point (setup) mode and
// station mode.
//
// A Controller owns the current Mode and changes it only by running a plan of
// Stages against an injected Configurator. Each stage is one external action
// (write a config file, bring an interface up, flush NAT rules, restart a
// daemon) that either succeeds or fails; the controller stops at the first
// failing stage and reports it in a *ModeError.
//
// # Fallback Policy
//
// A failed station join must not leave the device unreachable. Provision
// runs the join and, on failure, re-enters AP mode with the default
// configuration before returning:
//
//	result := ctrl.Provision(ctx, creds, defaults)
//	switch {
//	case result.Joined:
//	    // setup is done
//	case result.FallbackErr != nil:
//	    // no management interface, surface loudly
//	default:
//	    // back in AP mode, operator can retry
//	}
//
// # Thread Safety
//
// All transitions are serialized by one lock, and Provision holds it across
// both the join and the fallback, so a concurrent request starts only after
// the previous one fully resolves. CurrentMode, Status and Subscribe may be
// called at any time.
package netmode
