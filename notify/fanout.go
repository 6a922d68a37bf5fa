// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"errors"

	"github.com/bureau-foundation/catchup/trigger"
)

// Fanout delivers each firing to every notifier in order. One failing
// notifier does not stop the rest; their errors are joined.
type Fanout []trigger.Notifier

// Notify calls every notifier.
func (f Fanout) Notify(ctx context.Context, firing trigger.Firing) error {
	var errs []error
	for _, notifier := range f {
		if err := notifier.Notify(ctx, firing); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
