// Package domain models NOAA Operational Forecast System (OFS) output and the
// bookkeeping around a forecast cycle.
//
// # Data Source
//
// Surface-current forecasts originate from the NOS hydrodynamic models
// published on the NCEP NOMADS HTTP archive under
// /pub/data/nccf/com/nos/prod/. Each model run ("cycle") produces one NetCDF
// fields file per forecast lead hour, named
//
//	nos.<model>.fields.fNNN.YYYYMMDD.tHHz.nc
//
// where NNN is the zero-padded lead hour and HH the cycle hour of day.
//
// # Models
//
// Two native grid schemes are in service:
//
//	ROMS  — curvilinear structured grid (rho/u/v staggering), e.g. cbofs,
//	        dbofs, tbofs, gomofs.
//	FVCOM — unstructured triangular mesh with element-centre velocities,
//	        e.g. negofs, nwgofs, ngofs, sfbofs, leofs.
//
// Every model runs four times a day. Output appears on the archive some
// minutes after the cycle time; the per-model availability delay in the
// registry is the observed upper bound of that lag and drives latest-cycle
// selection.
//
// # Forecast hours and gaps
//
// A cycle's hour series is fixed by the registry (first hour, last hour,
// step). Acquisition produces one HourFile per configured hour, in ascending
// order, whether or not the download succeeded: a failed hour is carried as an
// explicit gap so the encoder can hold its slot in the output artifact rather
// than silently shortening the series.
//
// # Current vectors
//
// Native files store eastward/northward velocity components in m/s. S-111
// carries surface current speed in knots and direction in degrees clockwise
// from true north, toward which the current flows. See [SpeedKnots] and
// [DirectionDeg].
package domain
