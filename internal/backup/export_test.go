package backup

var (
	TextualMap              = textualMap
	NewS3UploaderWithClient = newS3Uploader
)
