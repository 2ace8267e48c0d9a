package server

import (
	"context"
	"io"
	"net"
	"os"

	"go.uber.org/zap"

	"github.com/muurk/softap/internal/logging"
	"github.com/muurk/softap/internal/netmode"
	"github.com/muurk/softap/internal/payload"
)

// serveIndex streams the configuration page. A page that cannot be opened
// is a *ResourceError.
func (s *Server) serveIndex(conn net.Conn, remoteAddr string) error {
	page, err := os.Open(s.config.PagePath)
	if err != nil {
		logging.Error("Cannot open configuration page",
			zap.String("path", s.config.PagePath),
			zap.Error(err),
		)
		return &ResourceError{Path: s.config.PagePath, Err: err}
	}
	defer page.Close()

	if _, err := io.WriteString(conn, pageHeader); err != nil {
		logging.Warn("Failed to write page header",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return nil
	}

	n, err := io.Copy(conn, page)
	if err != nil {
		logging.Warn("Failed to stream configuration page",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
		return nil
	}
	logging.LogHTTPResponse(remoteAddr, 200, len(pageHeader)+int(n))
	return nil
}

// handleSave provisions from the credentials in the request body. Both the
// join and any fallback finish before a response is written.
func (s *Server) handleSave(ctx context.Context, conn net.Conn, remoteAddr string, req *Request) Outcome {
	if !req.HasBody {
		logging.Warn("Save request without body", zap.String("remote_addr", remoteAddr))
		writeResponse(conn, remoteAddr, 400, errorResponse)
		return OutcomeShutdown
	}

	fields := payload.Extract(req.Body)
	ssid, hasSSID := fields.SSID()
	password, hasPassword := fields.Password()
	if !hasSSID || !hasPassword {
		logging.Warn("Save request missing ssid or password",
			zap.String("remote_addr", remoteAddr),
			zap.Bool("has_ssid", hasSSID),
			zap.Bool("has_password", hasPassword),
		)
		writeResponse(conn, remoteAddr, 400, errorResponse)
		return OutcomeShutdown
	}

	creds := netmode.StationCredentials{SSID: ssid, Passphrase: password}
	logging.Info("Provisioning request received",
		zap.String("remote_addr", remoteAddr),
		zap.Stringer("target", creds),
	)

	result := s.provisioner.Provision(ctx, creds, s.config.Fallback)

	if result.Joined {
		logging.Info("Joined network, provisioning complete", zap.Stringer("target", creds))
		// Best effort: the client was on the access point that is now gone.
		writeResponse(conn, remoteAddr, 200, successResponse)
		return OutcomeProvisioned
	}

	joinStage, _ := netmode.FailedStage(result.StationErr)
	if result.FallbackErr != nil {
		fallbackStage, _ := netmode.FailedStage(result.FallbackErr)
		logging.Error("Join failed and access point could not be restored",
			zap.String("result", result.String()),
			zap.String("join_stage", string(joinStage)),
			zap.String("fallback_stage", string(fallbackStage)),
		)
	} else {
		logging.Warn("Join failed, access point restored",
			zap.String("result", result.String()),
			zap.String("join_stage", string(joinStage)),
		)
	}
	writeResponse(conn, remoteAddr, 200, successResponse)
	return OutcomeShutdown
}
