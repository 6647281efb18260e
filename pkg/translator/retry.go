/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package translator

import (
	"context"
	"time"

	"github.com/carverauto/edgebridge/pkg/logger"
)

// retryUntil runs probe at the given interval until it yields a value. Every
// attempt is logged; the loop only ends on success or context cancellation.
func retryUntil[T any](
	ctx context.Context,
	log logger.Logger,
	name string,
	interval time.Duration,
	probe func(context.Context) (T, bool, error),
) (T, error) {
	var zero T

	for attempt := 1; ; attempt++ {
		value, ok, err := probe(ctx)

		switch {
		case err != nil:
			log.Warn().Err(err).
				Str("probe", name).
				Int("attempt", attempt).
				Msg("Probe failed, retrying")
		case ok:
			log.Info().
				Str("probe", name).
				Int("attempt", attempt).
				Msg("Probe succeeded")

			return value, nil
		default:
			log.Info().
				Str("probe", name).
				Int("attempt", attempt).
				Msg("Probe returned nothing yet, retrying")
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(interval):
		}
	}
}
