package app

import "github.com/agentstation/racesync/internal/appcontext"

// Ensure App implements the shared command context at compile time.
var _ appcontext.Interface = (*App)(nil)
