package opensearch

import (
	"context"
	"errors"

	"github.com/opensearch-project/opensearch-go/v2"
)

// Healthcheck returns a probe suitable for a startup readiness check.
func Healthcheck(client *opensearch.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if _, err := client.Info(
			client.Info.WithContext(ctx),
			client.Info.WithErrorTrace(),
		); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
