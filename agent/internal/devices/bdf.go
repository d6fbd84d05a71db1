package devices

// BDFOverride pins one exact bus:device:function triple to a label.
type BDFOverride struct {
	Bus      string `yaml:"bus"`
	Device   string `yaml:"device"`
	Function string `yaml:"function"`
	Label    string `yaml:"label"`
}

// BDFOverrides classifies PCI triples, preferring operator-supplied labels.
// The zero value has no overrides and falls through to ClassifyBDF.
type BDFOverrides struct {
	labels map[string]string
}

// NewBDFOverrides indexes list by exact triple. Later entries win.
func NewBDFOverrides(list []BDFOverride) BDFOverrides {
	labels := make(map[string]string, len(list))
	for _, o := range list {
		labels[bdfKey(o.Bus, o.Device, o.Function)] = o.Label
	}
	return BDFOverrides{labels: labels}
}

// Classify returns the override label for an exact match, else the ClassifyBDF guess.
func (o BDFOverrides) Classify(bus, dev, fn string) (string, bool) {
	if label, ok := o.labels[bdfKey(bus, dev, fn)]; ok {
		return label, true
	}
	return ClassifyBDF(bus, dev, fn)
}

func bdfKey(bus, dev, fn string) string { return bus + ":" + dev + ":" + fn }
