package services

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("github.com/saeid-a/coachmatch/internal/services")
