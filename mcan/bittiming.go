package mcan

// BitTiming holds the segments of one bit time in time quanta. The
// register fields hold each value minus one.
//
//	bit time = Prescaler * (1 + TimeSegment1 + TimeSegment2) / f_mcan
type BitTiming struct {
	Prescaler     uint16
	SyncJumpWidth uint16
	// TimeSegment1 covers propagation and phase segment 1.
	TimeSegment1 uint16
	TimeSegment2 uint16
}

// TotalQuanta returns the number of time quanta per bit including the
// synchronization segment.
func (t BitTiming) TotalQuanta() uint32 {
	return 1 + uint32(t.TimeSegment1) + uint32(t.TimeSegment2)
}

// SamplePoint returns the sample point in 1/100 percent.
func (t BitTiming) SamplePoint() uint16 {
	return uint16((1 + uint32(t.TimeSegment1)) * 10000 / t.TotalQuanta())
}

// BitRate returns the resulting bit rate in bit/s for an MCAN clock of
// clockHz.
func (t BitTiming) BitRate(clockHz uint32) uint32 {
	if t.Prescaler == 0 {
		return 0
	}
	return clockHz / (uint32(t.Prescaler) * t.TotalQuanta())
}

// BitTimingConfig selects how a bit timing is obtained. When BaudRate is
// non-zero the timing is calculated from the MCAN clock, otherwise Timing
// is programmed as given.
type BitTimingConfig struct {
	BaudRate uint32
	// SamplePoint in 1/100 percent, 8000 is 80.00%.
	SamplePoint uint16
	// SyncJumpWidth in time quanta.
	SyncJumpWidth uint16
	Timing        BitTiming
}

type timingLimits struct {
	maxPrescaler uint32
	minTSeg1     uint32
	maxTSeg1     uint32
	minTSeg2     uint32
	maxTSeg2     uint32
	maxSJW       uint32
}

var (
	nominalLimits = timingLimits{
		maxPrescaler: nbtpNBRPMsk + 1,
		minTSeg1:     2,
		maxTSeg1:     nbtpNTSEG1Msk + 1,
		minTSeg2:     2,
		maxTSeg2:     nbtpNTSEG2Msk + 1,
		maxSJW:       nbtpNSJWMsk + 1,
	}
	dataLimits = timingLimits{
		maxPrescaler: dbtpDBRPMsk + 1,
		minTSeg1:     1,
		maxTSeg1:     dbtpDTSEG1Msk + 1,
		minTSeg2:     1,
		maxTSeg2:     dbtpDTSEG2Msk + 1,
		maxSJW:       dbtpDSJWMsk + 1,
	}
)

const (
	// Quanta per bit below which the search stops once the rate error is
	// small enough.
	preferredMaxQuanta = 20
	// Candidates with fewer quanta per bit only win on a strictly smaller
	// rate error.
	preferredMinQuanta = 8
	// Rate error accepted for early termination, in parts per thousand.
	acceptedRateError = 1
)

// CalculateNominalTiming computes the arbitration phase bit timing for the
// target baud rate and sample point (1/100 percent) from an MCAN clock of
// clockHz. sjw is in time quanta.
func CalculateNominalTiming(clockHz, baud uint32, samplePoint, sjw uint16) (BitTiming, error) {
	return calculateTiming(clockHz, baud, samplePoint, sjw, nominalLimits)
}

// CalculateDataTiming computes the CAN FD data phase bit timing. The data
// phase fields are narrower than the nominal ones.
func CalculateDataTiming(clockHz, baud uint32, samplePoint, sjw uint16) (BitTiming, error) {
	return calculateTiming(clockHz, baud, samplePoint, sjw, dataLimits)
}

// calculateTiming searches the prescaler range upwards for the total quanta
// count with the smallest rate error. Ties go to the larger prescaler
// unless that leaves fewer than preferredMinQuanta. The search ends early
// once the count drops to preferredMaxQuanta with an error below
// acceptedRateError.
func calculateTiming(clockHz, baud uint32, samplePoint, sjw uint16, lim timingLimits) (BitTiming, error) {
	if clockHz == 0 || baud == 0 || samplePoint == 0 || samplePoint >= 10000 {
		return BitTiming{}, ErrBitTimingUnreachable
	}
	minQuanta := 1 + lim.minTSeg1 + lim.minTSeg2
	maxQuanta := 1 + lim.maxTSeg1 + lim.maxTSeg2
	clock := uint64(clockHz)

	var bestPrescaler, bestQuanta uint32
	bestErr := ^uint64(0)
	for prescaler := uint32(1); prescaler <= lim.maxPrescaler; prescaler++ {
		div := uint64(prescaler) * uint64(baud)
		quanta := (clock + div/2) / div
		if quanta < uint64(minQuanta) {
			break
		}
		if quanta > uint64(maxQuanta) {
			continue
		}
		// Rate error scaled by prescaler*quanta so candidates compare
		// without division.
		actual := div * quanta
		var rateErr uint64
		if actual > clock {
			rateErr = actual - clock
		} else {
			rateErr = clock - actual
		}
		if rateErr < bestErr || (rateErr == bestErr && quanta >= preferredMinQuanta) {
			bestErr = rateErr
			bestPrescaler = prescaler
			bestQuanta = uint32(quanta)
		}
		if quanta <= preferredMaxQuanta && rateErr*1000 < clock*acceptedRateError {
			break
		}
	}
	if bestPrescaler == 0 {
		return BitTiming{}, ErrBitTimingUnreachable
	}

	tseg1, tseg2 := splitQuanta(bestQuanta, uint32(samplePoint), lim)
	sjwq := uint32(sjw)
	if sjwq > tseg2 {
		sjwq = tseg2
	}
	if sjwq > lim.maxSJW {
		sjwq = lim.maxSJW
	}
	if sjwq == 0 {
		sjwq = 1
	}
	return BitTiming{
		Prescaler:     uint16(bestPrescaler),
		SyncJumpWidth: uint16(sjwq),
		TimeSegment1:  uint16(tseg1),
		TimeSegment2:  uint16(tseg2),
	}, nil
}

// splitQuanta places the sample point on the quantum nearest to the
// target. A target exactly between two quanta takes the earlier one.
func splitQuanta(quanta, samplePoint uint32, lim timingLimits) (tseg1, tseg2 uint32) {
	num := quanta * samplePoint
	beforeSample := num / 10000
	if num%10000 > 5000 {
		beforeSample++
	}
	if beforeSample == 0 {
		beforeSample = 1
	}
	tseg1 = clamp(beforeSample-1, lim.minTSeg1, lim.maxTSeg1)
	if tseg1 > quanta-1-lim.minTSeg2 {
		tseg1 = quanta - 1 - lim.minTSeg2
	}
	tseg2 = quanta - 1 - tseg1
	if tseg2 > lim.maxTSeg2 {
		tseg2 = lim.maxTSeg2
		tseg1 = quanta - 1 - tseg2
	}
	return tseg1, tseg2
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (t BitTiming) validate(lim timingLimits) error {
	switch {
	case t.Prescaler == 0 || uint32(t.Prescaler) > lim.maxPrescaler,
		uint32(t.TimeSegment1) < lim.minTSeg1 || uint32(t.TimeSegment1) > lim.maxTSeg1,
		uint32(t.TimeSegment2) < lim.minTSeg2 || uint32(t.TimeSegment2) > lim.maxTSeg2,
		t.SyncJumpWidth == 0 || uint32(t.SyncJumpWidth) > lim.maxSJW:
		return ErrInvalidBitTiming
	}
	return nil
}

// resolve returns the timing to program for the MCAN clock clockHz.
func (c BitTimingConfig) resolve(clockHz uint32, lim timingLimits) (BitTiming, error) {
	if c.BaudRate == 0 {
		if err := c.Timing.validate(lim); err != nil {
			return BitTiming{}, err
		}
		return c.Timing, nil
	}
	return calculateTiming(clockHz, c.BaudRate, c.SamplePoint, c.SyncJumpWidth, lim)
}

func (t BitTiming) nbtp() uint32 {
	return (uint32(t.SyncJumpWidth)-1)<<nbtpNSJWPos |
		(uint32(t.Prescaler)-1)<<nbtpNBRPPos |
		(uint32(t.TimeSegment1)-1)<<nbtpNTSEG1Pos |
		(uint32(t.TimeSegment2)-1)<<nbtpNTSEG2Pos
}

func (t BitTiming) dbtp() uint32 {
	return (uint32(t.Prescaler)-1)<<dbtpDBRPPos |
		(uint32(t.TimeSegment1)-1)<<dbtpDTSEG1Pos |
		(uint32(t.TimeSegment2)-1)<<dbtpDTSEG2Pos |
		(uint32(t.SyncJumpWidth)-1)<<dbtpDSJWPos
}

// nominalTimingFrom decodes an NBTP value.
func nominalTimingFrom(nbtp uint32) BitTiming {
	return BitTiming{
		Prescaler:     uint16((nbtp>>nbtpNBRPPos)&nbtpNBRPMsk) + 1,
		SyncJumpWidth: uint16((nbtp>>nbtpNSJWPos)&nbtpNSJWMsk) + 1,
		TimeSegment1:  uint16((nbtp>>nbtpNTSEG1Pos)&nbtpNTSEG1Msk) + 1,
		TimeSegment2:  uint16((nbtp>>nbtpNTSEG2Pos)&nbtpNTSEG2Msk) + 1,
	}
}

// dataTimingFrom decodes a DBTP value.
func dataTimingFrom(dbtp uint32) BitTiming {
	return BitTiming{
		Prescaler:     uint16((dbtp>>dbtpDBRPPos)&dbtpDBRPMsk) + 1,
		SyncJumpWidth: uint16((dbtp>>dbtpDSJWPos)&dbtpDSJWMsk) + 1,
		TimeSegment1:  uint16((dbtp>>dbtpDTSEG1Pos)&dbtpDTSEG1Msk) + 1,
		TimeSegment2:  uint16((dbtp>>dbtpDTSEG2Pos)&dbtpDTSEG2Msk) + 1,
	}
}
