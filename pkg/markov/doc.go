/*
Package markov implements a SQLite-backed Markov chain text model tuned for
short, quote-sized sentences.

A Generator is trained from any io.Reader through a Tokenizer. Tokens and
states are shared between every model in the database, while transition counts
and the training sentences belong to a single model. Sentences are sampled by
walking the chain from the begin state, optionally with temperature or top-K
sampling, and ShortSentence adds the length and originality checks that keep the
output from simply repeating the training corpus.

Models can be exported to and imported from a JSON file so a trained chain can
be moved between databases.
*/
package markov
