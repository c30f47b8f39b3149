package config

import (
	"errors"
	"fmt"
	"regexp"
)

// queueNamePattern matches the queue naming rules enforced at enqueue time:
// 3-63 chars, lowercase alphanumeric with single interior hyphens.
var queueNamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9]|-[a-z0-9])*$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateQueues(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateQueues() error {
	for key, name := range map[string]string{
		"queues.control": c.Queues.Control,
		"queues.stages":  c.Queues.Stages,
	} {
		if err := ValidateQueueName(name); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	if c.Queues.Control == c.Queues.Stages {
		return errors.New("queues.control and queues.stages must differ")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.queue_poll_interval":  c.Workflow.QueuePollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.lease_seconds":        c.Workflow.LeaseSeconds,
		"workflow.max_deliveries":       c.Workflow.MaxDeliveries,
	}); err != nil {
		return err
	}
	if c.Workflow.LeaseSeconds <= c.Workflow.QueuePollInterval {
		return errors.New("workflow.lease_seconds must be greater than workflow.queue_poll_interval")
	}
	return nil
}

// ValidateQueueName checks a queue name against the durable queue naming
// rules: 3-63 characters, lowercase letters and digits, single hyphens that
// neither lead, trail, nor repeat.
func ValidateQueueName(name string) error {
	if len(name) < 3 || len(name) > 63 {
		return fmt.Errorf("queue name %q must be 3-63 characters", name)
	}
	if !queueNamePattern.MatchString(name) {
		return fmt.Errorf("queue name %q must be lowercase alphanumeric with single interior hyphens", name)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
