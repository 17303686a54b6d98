package options

import "github.com/iamNilotpal/ignite/pkg/errors"

func validationErrDataDirRequired() error {
	return errors.NewRequiredFieldError("dataDir")
}

func validationErrInvalidMergeRatio() error {
	return errors.NewFieldRangeError("dataFileOptions.mergeRatio", nil, 0, 1)
}
