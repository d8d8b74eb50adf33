package greedy

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "greedy")
