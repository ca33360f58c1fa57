package service

import (
	"github.com/Hara602/downloadSentry/internal/alert"
)

// 宿主 (UI) 调用的命令: 只返回成功与否, 错误已经在内部记录

func (s *Service) StartWatching() bool {
	return s.Start() == nil
}

func (s *Service) StopWatching() bool {
	return s.Stop() == nil
}

// PostStatusNotification replaces the persistent status text. While the
// service is running the keep-alive notification is refreshed right away.
func (s *Service) PostStatusNotification(title, text string) bool {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	if title != "" {
		s.statusTitle = title
	}
	if text != "" {
		s.statusText = text
	}
	if s.statusActive {
		s.presenter.Notify(alert.ChannelStatus, s.statusTitle, s.statusBody())
	}
	return true
}
