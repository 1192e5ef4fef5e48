package strategies

import "errors"

var ErrUnknownStrategy = errors.New("strategy not registered")
