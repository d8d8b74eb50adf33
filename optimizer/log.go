package optimizer

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "optimizer")
