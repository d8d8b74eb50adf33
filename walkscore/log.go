package walkscore

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "walkscore")
