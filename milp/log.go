package milp

import "github.com/sirupsen/logrus"

var log = logrus.WithField("module", "milp")
