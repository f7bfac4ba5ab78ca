package mongo

import "errors"

var ErrFailedToConnectToMongo = errors.New("mongo: failed to connect after retry attempts")
