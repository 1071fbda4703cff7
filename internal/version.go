package internal

// Version is the pinphotos release version
const Version = "0.3.0"
