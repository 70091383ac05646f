package bluetoothutil

import "tinygo.org/x/bluetooth"

// StopScan stops discovery, ignoring "nothing to stop" answers.
func StopScan(adapter *bluetooth.Adapter) error {
	if err := adapter.StopScan(); err != nil && !IsBenignStopScanError(err) {
		return err
	}

	return nil
}

// NormalizeScanError drops the errors a scan loop returns when it was
// stopped on purpose.
func NormalizeScanError(err error) error {
	if err == nil || IsBenignStopScanError(err) {
		return nil
	}

	return err
}

// StopAdvertisement stops adv, ignoring an already unregistered one.
func StopAdvertisement(adv *bluetooth.Advertisement) error {
	if err := adv.Stop(); err != nil && !IsBenignStopAdvertiseError(err) {
		return err
	}

	return nil
}

// RestartAdvertisement starts adv, stopping a stale registration first.
func RestartAdvertisement(adv *bluetooth.Advertisement) error {
	err := adv.Start()
	if !IsAdvertisementRegisteredError(err) {
		return err
	}
	if err := StopAdvertisement(adv); err != nil {
		return err
	}

	return adv.Start()
}
