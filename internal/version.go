package internal

// Version is the studycards release version.
const Version = "0.3.0"
