/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package power

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// DefaultTimeout bounds a single suspend command
const DefaultTimeout = 30 * time.Second

// DefaultSuspendCommand asks systemd to suspend the host
var DefaultSuspendCommand = []string{"systemctl", "suspend"}

// Controller changes the power state of the local host
type Controller interface {
	Suspend(ctx context.Context) error
}

// CommandController suspends the host by running an external command
type CommandController struct {
	command []string
	timeout time.Duration
	log     logr.Logger
}

// NewCommandController creates a controller running command. An empty command
// falls back to DefaultSuspendCommand and a non-positive timeout to DefaultTimeout.
func NewCommandController(command []string, timeout time.Duration, log logr.Logger) *CommandController {
	if len(command) == 0 {
		command = DefaultSuspendCommand
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CommandController{
		command: append([]string(nil), command...),
		timeout: timeout,
		log:     log,
	}
}

// Suspend runs the configured command once. A non-zero exit is returned as an error
// carrying the command's stderr.
func (c *CommandController) Suspend(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.command[0], c.command[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	c.log.V(1).Info("Running suspend command", "command", c.String())

	start := time.Now()
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("%s failed: %w: %s", c.String(), err, strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("failed to run %s: %w", c.String(), err)
	}

	c.log.V(1).Info("Suspend command finished", "command", c.String(), "duration", time.Since(start).String())
	return nil
}

// String returns the command line
func (c *CommandController) String() string {
	return strings.Join(c.command, " ")
}

// DryRunController logs suspend requests without acting on them
type DryRunController struct {
	log logr.Logger
}

// NewDryRunController creates a controller that never suspends the host
func NewDryRunController(log logr.Logger) *DryRunController {
	return &DryRunController{log: log}
}

// Suspend only logs the request
func (d *DryRunController) Suspend(_ context.Context) error {
	d.log.Info("Suspend requested (dry run, not suspending)")
	return nil
}
