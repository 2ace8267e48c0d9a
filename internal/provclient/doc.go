// Package provclient is the operator side of softap: it fetches the setup
// page, posts credentials and follows the daemon's status stream.
//
// A save is answered only after the daemon has finished its join attempt
// and, on failure, restored the access point. Both cases get the same
// success page, so Provision follows the status stream while saving to tell
// them apart. When the join succeeds the access point disappears and the
// answer usually never arrives; that is reported as VerdictProbablyJoined.
//
// # Usage Example
//
//	client := provclient.NewClient("192.168.43.1", 8080, 8081)
//	report, err := client.Provision(ctx, netmode.StationCredentials{
//	    SSID:       "HomeNet",
//	    Passphrase: "hunter22",
//	})
//	if err != nil {
//	    fmt.Println(provclient.TroubleshootingHint(err))
//	    return err
//	}
//	fmt.Println(report.Verdict)
package provclient
