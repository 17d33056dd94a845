/*Package chain merges independently collapsed transcript models from
  several samples into one identifier space and recovers, for every feature
  of the final merged model, the feature id and abundance it corresponds to
  in each input sample.

  Samples are folded in one at a time: the first sample's model seeds a
  cumulative model, and each later sample is added to it by a merge Engine,
  which persists the new cumulative model and a step table recording, for
  each merged feature, the cumulative-side and sample-side ids it came
  from. Outputs are rebuilt by walking those step tables backwards from the
  last one.

  All per-step artifacts are written to a working directory under the
  alias "tmp_<sample>". A later run can resume from them by marking the
  already-merged samples as intermediate in its configuration. Runs that
  share a working directory must not overlap.
*/
package chain
