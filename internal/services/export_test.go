package services

import "time"

func (s *OrderService) SetPublishTimeout(d time.Duration) {
	s.publishTimeout = d
}
