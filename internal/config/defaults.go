package config

func applyFleetDefaults(f *Fleet) {
	if f.DaemonsPath == "" {
		f.DaemonsPath = "./daemons"
	}
	if f.Access.SQLitePath == "" {
		f.Access.SQLitePath = DefaultSQLitePath
	}
	if f.Access.InvitationTTLHours <= 0 {
		f.Access.InvitationTTLHours = DefaultInvitationTTLHours
	}
	if f.Access.RateLimitPerMinute <= 0 {
		f.Access.RateLimitPerMinute = DefaultRateLimitPerMinute
	}
	if f.HTTP.ListenAddr == "" {
		f.HTTP.ListenAddr = DefaultListenAddr
	}
	if f.SourceRetry.Backoff == "" {
		f.SourceRetry.Backoff = RetryBackoffLinear
	} else if rb := NormalizeRetryBackoff(string(f.SourceRetry.Backoff)); rb != "" {
		f.SourceRetry.Backoff = rb
	} else {
		f.SourceRetry.Backoff = RetryBackoffFixed
	}
	if f.SourceRetry.InitialDelay == "" {
		f.SourceRetry.InitialDelay = "1s"
	}
	if f.SourceRetry.MaxDelay == "" {
		f.SourceRetry.MaxDelay = "30s"
	}
	if f.SourceRetry.MaxRetries <= 0 {
		f.SourceRetry.MaxRetries = 2
	}
}
