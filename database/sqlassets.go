package sqlassets

import _ "embed"

//go:embed schema/clubs.sql
var ClubsSQL string

//go:embed schema/admins.sql
var AdminsSQL string

//go:embed schema/templates.sql
var TemplatesSQL string

//go:embed schema/attendees.sql
var AttendeesSQL string

//go:embed schema/certificates.sql
var CertificatesSQL string

//go:embed schema/activity_logs.sql
var ActivityLogsSQL string
