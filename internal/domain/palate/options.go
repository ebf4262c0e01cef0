package palate

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithConcentrationThreshold sets the top-product share at or above which a
// palate is loyal. Values outside (0,1] are ignored.
func WithConcentrationThreshold(t float64) Option {
	return func(c *Classifier) {
		if t > 0 && t <= 1 {
			c.concentration = t
		}
	}
}

// WithLowExplorationThreshold sets the exploration ratio below which the
// low-exploration flag is raised. Values outside [0,1] are ignored.
func WithLowExplorationThreshold(t float64) Option {
	return func(c *Classifier) {
		if t >= 0 && t <= 1 {
			c.lowExploration = t
		}
	}
}
