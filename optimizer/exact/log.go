package exact

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "exact")
