package lsp

import (
	"encoding/json"

	"lintfix/internal/config"
)

func (s *Server) handleDidChangeConfiguration(msg *rpcMessage) error {
	if len(msg.Params) == 0 {
		return nil
	}
	var params didChangeConfigurationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil
	}
	s.applySettings(params.Settings)
	return nil
}

// applySettings merges client settings; absent keys keep their values.
func (s *Server) applySettings(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var settings lspSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		s.log.Warn("ignoring malformed settings", "err", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if run := settings.Lintfix.Run; run != nil {
		switch *run {
		case config.RunOnType, config.RunOnSave:
			s.runMode = *run
		default:
			s.log.Warn("ignoring unknown run mode", "run", *run)
		}
	}
	if settings.Lintfix.FixOnSave != nil {
		s.fixOnSave = *settings.Lintfix.FixOnSave
	}
	if settings.Lintfix.Trace != nil {
		s.traceLSP = *settings.Lintfix.Trace
	}
}
