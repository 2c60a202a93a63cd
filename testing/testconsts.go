package testing

// Identity constants shared by tests that sign in.
const (
	TestPhone  = "+919876543210"
	TestOTP    = "123456"
	TestToken  = "tok-test"
	TestUserID = "usr-test"
)

// Seed IDs served by the sandbox backend.
const (
	TestCentreBengaluru = "ctr-blr"
	TestCentreMumbai    = "ctr-mum"
	TestClinicianPsych  = "cl-001"
	TestClinicianVideo  = "cl-003"
)

// TestEntryPath is the sign-in location used by navigation tests.
const TestEntryPath = "/login"
